package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// GatewayOrder is the gateway's record of a payment order
type GatewayOrder struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Receipt  string
	Status   string
}

// GatewayPayment is the authoritative payment detail fetched from the gateway
type GatewayPayment struct {
	ID       string
	OrderID  string
	Amount   decimal.Decimal
	Currency string
	Status   string // "authorized" or "captured"
	Method   string
}

// GatewayRefund is the gateway's record of a refund
type GatewayRefund struct {
	ID        string
	PaymentID string
	Amount    decimal.Decimal
	Status    string
}

// Gateway abstracts the external payment provider. All calls block on
// network I/O and honor the context's deadline.
type Gateway interface {
	// CreateOrder registers a payment order with the gateway
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error)

	// FetchPayment retrieves authoritative payment detail by gateway payment ID
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)

	// CreateRefund requests a (possibly partial) refund against a payment
	CreateRefund(ctx context.Context, paymentID string, amount decimal.Decimal) (*GatewayRefund, error)
}
