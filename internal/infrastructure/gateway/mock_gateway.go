package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/domain/shared"
)

// MockGateway is an in-process gateway for development and tests. Orders
// are auto-captured: fetching a payment whose ID was issued by
// CapturePayment reports it captured.
type MockGateway struct {
	mu       sync.Mutex
	orders   map[string]*payment.GatewayOrder
	payments map[string]*payment.GatewayPayment
	refunds  map[string]decimal.Decimal
}

// NewMockGateway creates an empty mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		orders:   make(map[string]*payment.GatewayOrder),
		payments: make(map[string]*payment.GatewayPayment),
		refunds:  make(map[string]decimal.Decimal),
	}
}

// CreateOrder registers a payment order
func (g *MockGateway) CreateOrder(_ context.Context, amount decimal.Decimal, currency, receipt string) (*payment.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order := &payment.GatewayOrder{
		ID:       "order_mock_" + uuid.NewString()[:12],
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	g.orders[order.ID] = order
	return order, nil
}

// CapturePayment simulates the customer completing the gateway checkout,
// producing a captured payment for the order. Tests drive this directly.
func (g *MockGateway) CapturePayment(gatewayOrderID, method string) (*payment.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[gatewayOrderID]
	if !ok {
		return nil, fmt.Errorf("mock gateway: unknown order %s", gatewayOrderID)
	}
	p := &payment.GatewayPayment{
		ID:       "pay_mock_" + uuid.NewString()[:12],
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Status:   "captured",
		Method:   method,
	}
	g.payments[p.ID] = p
	order.Status = "paid"
	return p, nil
}

// FetchPayment retrieves a previously captured payment
func (g *MockGateway) FetchPayment(_ context.Context, paymentID string) (*payment.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[paymentID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// CreateRefund records a refund against a captured payment
func (g *MockGateway) CreateRefund(_ context.Context, paymentID string, amount decimal.Decimal) (*payment.GatewayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[paymentID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	refunded := g.refunds[paymentID].Add(amount)
	if refunded.GreaterThan(p.Amount) {
		return nil, fmt.Errorf("mock gateway: refund exceeds payment amount")
	}
	g.refunds[paymentID] = refunded

	return &payment.GatewayRefund{
		ID:        "rfnd_mock_" + uuid.NewString()[:12],
		PaymentID: paymentID,
		Amount:    amount,
		Status:    "processed",
	}, nil
}

var _ payment.Gateway = (*MockGateway)(nil)
