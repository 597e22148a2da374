package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toybox/backend/internal/domain/shared"
)

// PaymentStatus summarizes the payment state carried on the order document
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Item represents a line item in an order
type Item struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ToyID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name        string          `gorm:"type:varchar(255);not null"`
	Quantity    int             `gorm:"not null;default:1"`
	Points      int             `gorm:"not null;default:1"`
	PriceAtTime decimal.Decimal `gorm:"type:decimal(18,2);not null"` // Unit price when the order was placed
	CreatedAt   time.Time
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "order_items"
}

// StatusChange is one append-only entry in an order's status history
type StatusChange struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status    Status     `gorm:"type:varchar(30);not null"`
	Timestamp time.Time  `gorm:"not null"`
	ActorID   *uuid.UUID `gorm:"type:uuid"`
	Notes     string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (StatusChange) TableName() string {
	return "order_status_history"
}

// PaymentSummary is the denormalized payment view carried on the order
type PaymentSummary struct {
	Method         string          `gorm:"type:varchar(30);column:payment_method"`
	Status         PaymentStatus   `gorm:"type:varchar(30);column:payment_status;default:pending"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(18,2);column:paid_amount;default:0"`
	RefundedAmount decimal.Decimal `gorm:"type:decimal(18,2);column:refunded_amount;default:0"`
	PaidAt         *time.Time      `gorm:"column:paid_at"`
}

// Milestones holds the per-milestone timestamps of the order lifecycle
type Milestones struct {
	PaymentCompletedAt   *time.Time `gorm:"column:payment_completed_at"`
	PreparationStartedAt *time.Time `gorm:"column:preparation_started_at"`
	QualityCheckedAt     *time.Time `gorm:"column:quality_checked_at"`
	PackedAt             *time.Time `gorm:"column:packed_at"`
	ShippedAt            *time.Time `gorm:"column:shipped_at"`
	DeliveredAt          *time.Time `gorm:"column:delivered_at"`
	CompletedAt          *time.Time `gorm:"column:completed_at"`
	CancelledAt          *time.Time `gorm:"column:cancelled_at"`
}

// Order is the aggregate root for a customer order.
// Status may only be changed through Transition; no other code path writes it.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber      string          `gorm:"type:varchar(20);not null;uniqueIndex"`
	UserID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Items            []Item          `gorm:"foreignKey:OrderID;references:ID"`
	Status           Status          `gorm:"type:varchar(30);not null;index;default:pending_payment"`
	StatusHistory    []StatusChange  `gorm:"foreignKey:OrderID;references:ID"`
	Payment          PaymentSummary  `gorm:"embedded"`
	Milestones       Milestones      `gorm:"embedded"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency         string          `gorm:"type:varchar(3);not null;default:INR"`
	IsReturnable     bool            `gorm:"not null;default:true"`
	ReturnWindowDays int             `gorm:"not null;default:7"`
	ReturnDeadline   *time.Time
	ReturnReason     string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// NewItemInput describes a line item at order creation
type NewItemInput struct {
	ToyID       uuid.UUID
	Name        string
	Quantity    int
	Points      int
	PriceAtTime decimal.Decimal
}

// NewOrder creates a new order in pending_payment with an initial history entry
func NewOrder(orderNumber string, userID uuid.UUID, items []NewItemInput) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("NO_ITEMS", "Order must contain at least one item")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		UserID:            userID,
		Status:            StatusPendingPayment,
		Currency:          "INR",
		IsReturnable:      true,
		ReturnWindowDays:  7,
		TotalAmount:       decimal.Zero,
		Payment: PaymentSummary{
			Status:         PaymentStatusPending,
			PaidAmount:     decimal.Zero,
			RefundedAmount: decimal.Zero,
		},
	}

	total := decimal.Zero
	for _, in := range items {
		if in.ToyID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_TOY", "Toy ID cannot be empty")
		}
		if in.Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Item quantity must be positive")
		}
		if in.PriceAtTime.IsNegative() {
			return nil, shared.NewDomainError("INVALID_PRICE", "Item price cannot be negative")
		}
		points := in.Points
		if points <= 0 {
			points = 1
		}
		o.Items = append(o.Items, Item{
			ID:          uuid.New(),
			OrderID:     o.ID,
			ToyID:       in.ToyID,
			Name:        in.Name,
			Quantity:    in.Quantity,
			Points:      points,
			PriceAtTime: in.PriceAtTime,
			CreatedAt:   o.CreatedAt,
		})
		total = total.Add(in.PriceAtTime.Mul(decimal.NewFromInt(int64(in.Quantity))))
	}
	o.TotalAmount = total

	o.StatusHistory = append(o.StatusHistory, StatusChange{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Status:    StatusPendingPayment,
		Timestamp: o.CreatedAt,
		Notes:     "Order created",
	})

	return o, nil
}

// Transition moves the order to newStatus.
// The edge is validated against the transition table before any field is
// touched, so a rejected call leaves the order unchanged.
func (o *Order) Transition(newStatus Status, actorID *uuid.UUID, notes string) error {
	if !newStatus.IsValid() {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Unknown order status %q", string(newStatus)))
	}
	if !o.Status.CanTransitionTo(newStatus) {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Invalid status transition from %s to %s", o.Status, newStatus))
	}

	now := time.Now()
	o.Status = newStatus
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Status:    newStatus,
		Timestamp: now,
		ActorID:   actorID,
		Notes:     notes,
	})
	o.stampMilestone(newStatus, now)
	o.UpdatedAt = now

	return nil
}

// stampMilestone records the per-milestone timestamp for the new status
func (o *Order) stampMilestone(s Status, now time.Time) {
	switch s {
	case StatusConfirmed:
		o.Milestones.PaymentCompletedAt = &now
	case StatusPreparing:
		o.Milestones.PreparationStartedAt = &now
	case StatusQualityCheck:
		o.Milestones.QualityCheckedAt = &now
	case StatusPacked:
		o.Milestones.PackedAt = &now
	case StatusShipped:
		o.Milestones.ShippedAt = &now
	case StatusDelivered:
		o.Milestones.DeliveredAt = &now
		if o.IsReturnable {
			deadline := now.AddDate(0, 0, o.ReturnWindowDays)
			o.ReturnDeadline = &deadline
		}
	case StatusCompleted:
		o.Milestones.CompletedAt = &now
	case StatusCancelled:
		o.Milestones.CancelledAt = &now
	}
}

// CanBeCancelled returns true while the order has not entered fulfillment
func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case StatusPendingPayment, StatusConfirmed, StatusPreparing:
		return true
	}
	return false
}

// CanBeReturnedAt returns true if a return may be requested at the given time
func (o *Order) CanBeReturnedAt(now time.Time) bool {
	if !o.IsReturnable {
		return false
	}
	if o.Status != StatusDelivered {
		return false
	}
	if o.ReturnDeadline == nil {
		return false
	}
	return !now.After(*o.ReturnDeadline)
}

// IsTerminal returns true if the order is in a terminal state
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// TotalQuantity returns the sum of all item quantities
func (o *Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// Progress returns the happy-path progress indicator for the order
func (o *Order) Progress() Progress {
	return ProgressOf(o.Status)
}

// RecordPayment updates the payment summary after a successful capture
func (o *Order) RecordPayment(method string, amount decimal.Decimal, paidAt time.Time) {
	o.Payment.Method = method
	o.Payment.Status = PaymentStatusPaid
	o.Payment.PaidAmount = amount
	o.Payment.PaidAt = &paidAt
	o.UpdatedAt = time.Now()
}

// RecordPaymentFailure marks the payment summary as failed
func (o *Order) RecordPaymentFailure() {
	o.Payment.Status = PaymentStatusFailed
	o.UpdatedAt = time.Now()
}

// RecordRefund accumulates a refunded amount on the payment summary
func (o *Order) RecordRefund(amount decimal.Decimal) {
	o.Payment.RefundedAmount = o.Payment.RefundedAmount.Add(amount)
	if o.Payment.RefundedAmount.GreaterThanOrEqual(o.Payment.PaidAmount) {
		o.Payment.Status = PaymentStatusRefunded
	} else {
		o.Payment.Status = PaymentStatusPartiallyRefunded
	}
	o.UpdatedAt = time.Now()
}
