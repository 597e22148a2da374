package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/toybox/backend/internal/domain/shared"
)

// ToyRepository defines persistence operations for toys
type ToyRepository interface {
	shared.Repository[Toy]
	FindBySKU(ctx context.Context, sku string) (*Toy, error)
	SaveWithLock(ctx context.Context, t *Toy, expectedVersion int) error
	FindLowStock(ctx context.Context) ([]Toy, error)
}

// LedgerRepository defines persistence operations for ledger entries.
// Entries are append-only: there is no update or delete.
type LedgerRepository interface {
	Append(ctx context.Context, entry *LedgerEntry) error
	FindByToyID(ctx context.Context, toyID uuid.UUID, filter shared.Filter) (shared.Paginated[*LedgerEntry], error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]LedgerEntry, error)
	FindByBatchID(ctx context.Context, batchID string) ([]LedgerEntry, error)
}

// AlertRepository defines persistence operations for stock alerts
type AlertRepository interface {
	shared.Repository[Alert]
	FindActiveByToyID(ctx context.Context, toyID uuid.UUID) ([]Alert, error)
	FindActive(ctx context.Context, filter shared.Filter) (shared.Paginated[*Alert], error)
}

// ReservationRepository defines persistence operations for reservations
type ReservationRepository interface {
	shared.Repository[Reservation]
	FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) ([]Reservation, error)
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]Reservation, error)
	SaveWithLock(ctx context.Context, r *Reservation, expectedVersion int) error
}
