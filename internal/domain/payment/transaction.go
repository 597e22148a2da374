package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toybox/backend/internal/domain/shared"
)

// Status is the lifecycle state of a payment transaction
type Status string

const (
	StatusCreated    Status = "created"
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal returns true for states with no further progression
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRefunded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// RefundDetails tracks cumulative refunds against a captured transaction
type RefundDetails struct {
	RefundID     string          `gorm:"type:varchar(64);column:refund_id"`
	RefundAmount decimal.Decimal `gorm:"type:decimal(18,2);column:refund_amount;default:0"`
	RefundReason string          `gorm:"type:varchar(500);column:refund_reason"`
	RefundedAt   *time.Time      `gorm:"column:refunded_at"`
	RefundedBy   *uuid.UUID      `gorm:"type:uuid;column:refunded_by"`
}

// Transaction records one payment attempt against an order, reconciled
// with the external gateway. At most one non-terminal transaction exists
// per order at a time; the application layer enforces this on creation.
type Transaction struct {
	shared.BaseAggregateRoot
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	UserID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	GatewayOrderID    string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	GatewayPaymentID  string          `gorm:"type:varchar(64);index"`
	Signature         string          `gorm:"type:varchar(128)"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency          string          `gorm:"type:varchar(3);not null;default:INR"`
	Status            Status          `gorm:"type:varchar(20);not null;index;default:created"`
	Method            string          `gorm:"type:varchar(30)"`
	FailureReason     string          `gorm:"type:varchar(500)"`
	Refund            RefundDetails   `gorm:"embedded"`
	CapturedAt        *time.Time
	RawWebhookPayload []byte `gorm:"type:bytes"`
}

// TableName returns the table name for GORM
func (Transaction) TableName() string {
	return "payment_transactions"
}

// NewTransaction creates a transaction in status created for a gateway order
func NewTransaction(orderID, userID uuid.UUID, gatewayOrderID string, amount decimal.Decimal, currency string) (*Transaction, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if gatewayOrderID == "" {
		return nil, shared.NewDomainError("INVALID_GATEWAY_ORDER", "Gateway order ID cannot be empty")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if currency == "" {
		currency = "INR"
	}
	return &Transaction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           orderID,
		UserID:            userID,
		GatewayOrderID:    gatewayOrderID,
		Amount:            amount,
		Currency:          currency,
		Status:            StatusCreated,
		Refund:            RefundDetails{RefundAmount: decimal.Zero},
	}, nil
}

// IsNonTerminalActive reports whether the transaction blocks a new payment
// attempt for the same order
func (t *Transaction) IsNonTerminalActive() bool {
	switch t.Status {
	case StatusCreated, StatusPending, StatusAuthorized, StatusCaptured:
		return true
	}
	return false
}

func (t *Transaction) guardAdvance(target Status) error {
	if t.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot move transaction from terminal status %s to %s", t.Status, target))
	}
	return nil
}

// MarkPending records that the customer has started the gateway flow
func (t *Transaction) MarkPending() error {
	if err := t.guardAdvance(StatusPending); err != nil {
		return err
	}
	if t.Status == StatusCaptured {
		return shared.NewDomainError("INVALID_STATE", "Cannot move a captured transaction back to pending")
	}
	t.Status = StatusPending
	t.UpdatedAt = time.Now()
	return nil
}

// MarkAuthorized records a gateway authorization without capture.
// Already-captured transactions are left untouched.
func (t *Transaction) MarkAuthorized(paymentID string) error {
	if t.Status == StatusCaptured {
		return nil
	}
	if err := t.guardAdvance(StatusAuthorized); err != nil {
		return err
	}
	t.Status = StatusAuthorized
	t.GatewayPaymentID = paymentID
	t.UpdatedAt = time.Now()
	return nil
}

// MarkCaptured records a completed payment. Idempotent: calling it on an
// already-captured transaction is a no-op.
func (t *Transaction) MarkCaptured(paymentID, signature, method string) error {
	if t.Status == StatusCaptured {
		return nil
	}
	if err := t.guardAdvance(StatusCaptured); err != nil {
		return err
	}
	now := time.Now()
	t.Status = StatusCaptured
	t.GatewayPaymentID = paymentID
	t.Signature = signature
	t.Method = method
	t.CapturedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkFailed records a payment failure with a reason. A captured
// transaction cannot be demoted; a late failure signal for it is a
// reconciliation conflict, not a state change.
func (t *Transaction) MarkFailed(reason string) error {
	if t.Status == StatusFailed {
		return nil
	}
	if t.Status == StatusCaptured || t.Status == StatusRefunded || t.Status == StatusCancelled {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot fail transaction in status %s", t.Status))
	}
	t.Status = StatusFailed
	t.FailureReason = reason
	t.UpdatedAt = time.Now()
	return nil
}

// MarkCancelled abandons a transaction that never reached capture
func (t *Transaction) MarkCancelled() error {
	if t.Status == StatusCaptured || t.Status == StatusRefunded {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot cancel transaction in status %s", t.Status))
	}
	if t.Status == StatusCancelled {
		return nil
	}
	t.Status = StatusCancelled
	t.UpdatedAt = time.Now()
	return nil
}

// RefundableAmount returns how much of the captured amount can still be refunded
func (t *Transaction) RefundableAmount() decimal.Decimal {
	return t.Amount.Sub(t.Refund.RefundAmount)
}

// ApplyRefund accumulates a refund against the transaction. Status becomes
// refunded only once the cumulative refunded amount covers the full amount;
// partial refunds leave the transaction captured.
func (t *Transaction) ApplyRefund(amount decimal.Decimal, refundID, reason string, actorID *uuid.UUID) error {
	if t.Status != StatusCaptured {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot refund transaction in status %s", t.Status))
	}
	if amount.IsNegative() || amount.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Refund amount must be positive")
	}
	if amount.GreaterThan(t.RefundableAmount()) {
		return shared.NewDomainError("REFUND_EXCEEDS_AVAILABLE",
			fmt.Sprintf("Refund amount %s exceeds refundable %s", amount, t.RefundableAmount()))
	}

	now := time.Now()
	t.Refund.RefundAmount = t.Refund.RefundAmount.Add(amount)
	t.Refund.RefundID = refundID
	t.Refund.RefundReason = reason
	t.Refund.RefundedAt = &now
	t.Refund.RefundedBy = actorID
	if t.Refund.RefundAmount.GreaterThanOrEqual(t.Amount) {
		t.Status = StatusRefunded
	}
	t.UpdatedAt = now
	return nil
}

// AttachWebhookPayload keeps the raw gateway payload for audit
func (t *Transaction) AttachWebhookPayload(raw []byte) {
	t.RawWebhookPayload = raw
	t.UpdatedAt = time.Now()
}
