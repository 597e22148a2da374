package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/toybox/backend/internal/domain/shared"
)

// ReservationStatus is the lifecycle state of a stock reservation
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// DefaultReservationTTL is how long a reservation holds stock before expiring
const DefaultReservationTTL = 24 * time.Hour

// Reservation is a temporary hold of quantity against an order.
// active is the only non-terminal state; fulfilled, cancelled and
// expired reservations never transition again.
type Reservation struct {
	shared.BaseAggregateRoot
	ToyID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	OrderID     uuid.UUID         `gorm:"type:uuid;not null;index:idx_reservations_order_status"`
	UserID      uuid.UUID         `gorm:"type:uuid;not null"`
	Quantity    int               `gorm:"not null"`
	Status      ReservationStatus `gorm:"type:varchar(20);not null;index:idx_reservations_order_status;default:active"`
	ExpiresAt   time.Time         `gorm:"not null;index"`
	FulfilledAt *time.Time
	CancelledAt *time.Time
	ExpiredAt   *time.Time
}

// TableName returns the table name for GORM
func (Reservation) TableName() string {
	return "inventory_reservations"
}

// NewReservation creates an active reservation expiring after ttl.
// A non-positive ttl falls back to the default 24h.
func NewReservation(toyID, orderID, userID uuid.UUID, quantity int, ttl time.Duration) (*Reservation, error) {
	if toyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TOY", "Toy ID cannot be empty")
	}
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Reservation quantity must be positive")
	}
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}

	base := shared.NewBaseAggregateRoot()
	return &Reservation{
		BaseAggregateRoot: base,
		ToyID:             toyID,
		OrderID:           orderID,
		UserID:            userID,
		Quantity:          quantity,
		Status:            ReservationActive,
		ExpiresAt:         base.CreatedAt.Add(ttl),
	}, nil
}

// IsActive returns true while the reservation still holds stock
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// IsExpiredAt returns true if an active reservation's TTL has passed
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return r.Status == ReservationActive && now.After(r.ExpiresAt)
}

func (r *Reservation) requireActive(action string) error {
	if r.Status != ReservationActive {
		return shared.NewDomainError("RESERVATION_NOT_ACTIVE",
			fmt.Sprintf("Cannot %s reservation in status %s", action, r.Status))
	}
	return nil
}

// Fulfill marks the reservation consumed by a completed order
func (r *Reservation) Fulfill() error {
	if err := r.requireActive("fulfill"); err != nil {
		return err
	}
	now := time.Now()
	r.Status = ReservationFulfilled
	r.FulfilledAt = &now
	r.UpdatedAt = now
	return nil
}

// Cancel releases the reservation back to stock
func (r *Reservation) Cancel() error {
	if err := r.requireActive("cancel"); err != nil {
		return err
	}
	now := time.Now()
	r.Status = ReservationCancelled
	r.CancelledAt = &now
	r.UpdatedAt = now
	return nil
}

// Expire marks the reservation as lapsed by the expiry sweep
func (r *Reservation) Expire() error {
	if err := r.requireActive("expire"); err != nil {
		return err
	}
	now := time.Now()
	r.Status = ReservationExpired
	r.ExpiredAt = &now
	r.UpdatedAt = now
	return nil
}
