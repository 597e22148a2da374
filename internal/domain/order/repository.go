package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/toybox/backend/internal/domain/shared"
)

// Repository defines persistence operations for orders
type Repository interface {
	shared.Repository[Order]
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, filter shared.Filter) (shared.Paginated[*Order], error)
	FindByStatus(ctx context.Context, status Status, filter shared.Filter) (shared.Paginated[*Order], error)
	SaveWithLock(ctx context.Context, o *Order, expectedVersion int) error
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
