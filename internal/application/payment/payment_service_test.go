package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	invapp "github.com/toybox/backend/internal/application/inventory"
	orderapp "github.com/toybox/backend/internal/application/order"
	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/order"
	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/domain/shared"
	"github.com/toybox/backend/internal/infrastructure/cache"
	"github.com/toybox/backend/internal/infrastructure/gateway"
	"github.com/toybox/backend/internal/infrastructure/persistence"
)

// paymentEnv wires the payment service against an in-memory SQLite
// database, the mock gateway and a real order/reservation stack, so the
// capture path exercises the same transitions production does.
type paymentEnv struct {
	toys     *persistence.GormToyRepository
	orders   *persistence.GormOrderRepository
	txs      *persistence.GormTransactionRepository
	orderSvc *orderapp.Service
	payments *Service
	webhooks *WebhookService
	gw       *gateway.MockGateway
	cfg      Config
}

func newPaymentEnv(t *testing.T) *paymentEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&order.Order{},
		&order.Item{},
		&order.StatusChange{},
		&inventory.Toy{},
		&inventory.LedgerEntry{},
		&inventory.Alert{},
		&inventory.Reservation{},
		&payment.Transaction{},
	))

	logger := zap.NewNop()
	toys := persistence.NewGormToyRepository(db)
	orders := persistence.NewGormOrderRepository(db)
	txs := persistence.NewGormTransactionRepository(db)
	reservations := invapp.NewReservationService(persistence.NewGormTransactionScope(db), 24*time.Hour, logger)
	orderSvc := orderapp.NewService(orders, toys, reservations, nil, logger)

	gw := gateway.NewMockGateway()
	cfg := Config{
		VerifySecret:   "verify-secret",
		WebhookSecret:  "hook-secret",
		GatewayTimeout: 2 * time.Second,
	}
	payments := NewService(txs, orders, orderSvc, gw, cfg, logger)
	webhooks := NewWebhookService(payments, cache.NewMemoryIdempotencyStore(),
		shared.IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}, cfg.WebhookSecret, logger)

	return &paymentEnv{
		toys:     toys,
		orders:   orders,
		txs:      txs,
		orderSvc: orderSvc,
		payments: payments,
		webhooks: webhooks,
		gw:       gw,
		cfg:      cfg,
	}
}

// newPendingOrder seeds a toy with the given stock and places an order for
// two of it, leaving the order in pending_payment.
func (e *paymentEnv) newPendingOrder(t *testing.T, stock int) (*order.Order, *inventory.Toy) {
	t.Helper()
	ctx := context.Background()

	toy, err := inventory.NewToy("Wooden Train", "TOY-"+uuid.NewString()[:8], "vehicles", 2)
	require.NoError(t, err)
	toy.AvailableQuantity = stock
	require.NoError(t, e.toys.Save(ctx, toy))

	o, err := e.orderSvc.CreateOrder(ctx, uuid.New(), []orderapp.CreateOrderItemInput{
		{ToyID: toy.ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusPendingPayment, o.Status)
	return o, toy
}

// capture walks the happy verify path for the order and returns the
// captured transaction.
func (e *paymentEnv) capture(t *testing.T, orderID uuid.UUID) *payment.Transaction {
	t.Helper()
	ctx := context.Background()

	tx, err := e.payments.CreateOrder(ctx, orderID)
	require.NoError(t, err)

	p, err := e.gw.CapturePayment(tx.GatewayOrderID, "card")
	require.NoError(t, err)

	sig := payment.ComputeVerifySignature(tx.GatewayOrderID, p.ID, e.cfg.VerifySecret)
	verified, err := e.payments.Verify(ctx, tx.GatewayOrderID, p.ID, sig)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCaptured, verified.Status)
	return verified
}

func TestService_CreateOrder(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()

	t.Run("creates a transaction in status created", func(t *testing.T) {
		o, _ := env.newPendingOrder(t, 10)

		tx, err := env.payments.CreateOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCreated, tx.Status)
		assert.Equal(t, o.ID, tx.OrderID)
		assert.NotEmpty(t, tx.GatewayOrderID)
		assert.True(t, tx.Amount.Equal(o.TotalAmount))
	})

	t.Run("rejects a second payment while one is active", func(t *testing.T) {
		o, _ := env.newPendingOrder(t, 10)

		_, err := env.payments.CreateOrder(ctx, o.ID)
		require.NoError(t, err)

		_, err = env.payments.CreateOrder(ctx, o.ID)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "DUPLICATE_PAYMENT", domainErr.Code)
	})

	t.Run("rejects an order past pending_payment", func(t *testing.T) {
		o, _ := env.newPendingOrder(t, 10)
		env.capture(t, o.ID)

		_, err := env.payments.CreateOrder(ctx, o.ID)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
	})
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("capture confirms the order and reserves stock", func(t *testing.T) {
		env := newPaymentEnv(t)
		o, toy := env.newPendingOrder(t, 10)

		tx := env.capture(t, o.ID)
		assert.NotEmpty(t, tx.GatewayPaymentID)
		assert.NotNil(t, tx.CapturedAt)

		reloaded, err := env.orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusConfirmed, reloaded.Status)
		assert.Equal(t, order.PaymentStatusPaid, reloaded.Payment.Status)
		assert.NotNil(t, reloaded.Milestones.PaymentCompletedAt)

		stocked, err := env.toys.FindByID(ctx, toy.ID)
		require.NoError(t, err)
		assert.Equal(t, 8, stocked.AvailableQuantity, "confirmation holds the ordered quantity")
	})

	t.Run("signature mismatch fails the transaction, not the order", func(t *testing.T) {
		env := newPaymentEnv(t)
		o, _ := env.newPendingOrder(t, 10)

		tx, err := env.payments.CreateOrder(ctx, o.ID)
		require.NoError(t, err)
		p, err := env.gw.CapturePayment(tx.GatewayOrderID, "card")
		require.NoError(t, err)

		_, err = env.payments.Verify(ctx, tx.GatewayOrderID, p.ID, "0000deadbeef")
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "SIGNATURE_MISMATCH", domainErr.Code)

		failed, err := env.txs.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusFailed, failed.Status)

		reloaded, err := env.orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPendingPayment, reloaded.Status)

		// the failed transaction is terminal, so a retry is allowed
		_, err = env.payments.CreateOrder(ctx, o.ID)
		assert.NoError(t, err)
	})

	t.Run("gateway outage surfaces as recoverable", func(t *testing.T) {
		env := newPaymentEnv(t)
		o, _ := env.newPendingOrder(t, 10)

		tx, err := env.payments.CreateOrder(ctx, o.ID)
		require.NoError(t, err)

		sig := payment.ComputeVerifySignature(tx.GatewayOrderID, "pay_unknown", env.cfg.VerifySecret)
		_, err = env.payments.Verify(ctx, tx.GatewayOrderID, "pay_unknown", sig)
		assert.True(t, errors.Is(err, shared.ErrGatewayUnavailable))

		unchanged, err := env.txs.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCreated, unchanged.Status)
	})

	t.Run("bad signature after capture leaves the capture intact", func(t *testing.T) {
		env := newPaymentEnv(t)
		o, _ := env.newPendingOrder(t, 10)

		tx := env.capture(t, o.ID)

		_, err := env.payments.Verify(ctx, tx.GatewayOrderID, tx.GatewayPaymentID, "feedface")
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "SIGNATURE_MISMATCH", domainErr.Code)

		stored, err := env.txs.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, stored.Status)

		// the money trail survives: the capture can still be refunded
		refunded, err := env.payments.Refund(ctx, o.ID, decimal.NewFromInt(50), "goodwill", nil)
		require.NoError(t, err)
		assert.True(t, refunded.Refund.RefundAmount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("verifying an already captured transaction is a no-op", func(t *testing.T) {
		env := newPaymentEnv(t)
		o, toy := env.newPendingOrder(t, 10)

		tx := env.capture(t, o.ID)

		sig := payment.ComputeVerifySignature(tx.GatewayOrderID, tx.GatewayPaymentID, env.cfg.VerifySecret)
		again, err := env.payments.Verify(ctx, tx.GatewayOrderID, tx.GatewayPaymentID, sig)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, again.Status)

		stocked, err := env.toys.FindByID(ctx, toy.ID)
		require.NoError(t, err)
		assert.Equal(t, 8, stocked.AvailableQuantity, "no second hold")
	})
}

func TestService_Refund(t *testing.T) {
	env := newPaymentEnv(t)
	ctx := context.Background()

	o, _ := env.newPendingOrder(t, 10)
	tx := env.capture(t, o.ID)
	total := tx.Amount

	t.Run("partial refund accumulates", func(t *testing.T) {
		refunded, err := env.payments.Refund(ctx, o.ID, decimal.NewFromInt(100), "damaged box", nil)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCaptured, refunded.Status)
		assert.True(t, refunded.Refund.RefundAmount.Equal(decimal.NewFromInt(100)))

		reloaded, err := env.orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.PaymentStatusPartiallyRefunded, reloaded.Payment.Status)
	})

	t.Run("over-refund is rejected", func(t *testing.T) {
		_, err := env.payments.Refund(ctx, o.ID, total, "too much", nil)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "REFUND_EXCEEDS_AVAILABLE", domainErr.Code)
	})

	t.Run("refunding the remainder closes the transaction", func(t *testing.T) {
		remainder := total.Sub(decimal.NewFromInt(100))
		refunded, err := env.payments.Refund(ctx, o.ID, remainder, "order returned", nil)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusRefunded, refunded.Status)
		assert.True(t, refunded.Refund.RefundAmount.Equal(total))

		reloaded, err := env.orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.PaymentStatusRefunded, reloaded.Payment.Status)
	})

	t.Run("a further refund against the closed transaction is a conflict", func(t *testing.T) {
		_, err := env.payments.Refund(ctx, o.ID, decimal.NewFromInt(1), "again", nil)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "REFUND_EXCEEDS_AVAILABLE", domainErr.Code)
	})
}
