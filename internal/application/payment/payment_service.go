package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	orderapp "github.com/toybox/backend/internal/application/order"
	"github.com/toybox/backend/internal/domain/order"
	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/domain/shared"
)

// Config holds the payment secrets and gateway call policy
type Config struct {
	VerifySecret   string
	WebhookSecret  string
	GatewayTimeout time.Duration
}

// DefaultConfig returns the default gateway call policy
func DefaultConfig() Config {
	return Config{GatewayTimeout: 30 * time.Second}
}

// Service reconciles payment transactions with the external gateway and
// drives the matching order transitions. The client verify path and the
// gateway webhook path converge on the same state-conditional handlers,
// serialized per order, so replays and races settle on one outcome.
type Service struct {
	transactions payment.Repository
	orders       order.Repository
	orderSvc     *orderapp.Service
	gateway      payment.Gateway
	cfg          Config
	locks        *orderLocks
	logger       *zap.Logger
}

// NewService creates a new payment service
func NewService(
	transactions payment.Repository,
	orders order.Repository,
	orderSvc *orderapp.Service,
	gateway payment.Gateway,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 30 * time.Second
	}
	return &Service{
		transactions: transactions,
		orders:       orders,
		orderSvc:     orderSvc,
		gateway:      gateway,
		cfg:          cfg,
		locks:        newOrderLocks(),
		logger:       logger,
	}
}

// callGateway runs one gateway call with a timeout and a single automatic
// retry. A second failure surfaces as a recoverable error; the caller's
// transaction stays in its last known state for later reconciliation.
func callGateway[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := fn(callCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return zero, fmt.Errorf("%w: %v", shared.ErrGatewayUnavailable, lastErr)
}

// CreateOrder requests a payment order from the gateway and records a new
// transaction in status created. Rejected if a non-terminal transaction
// already exists for the order.
func (s *Service) CreateOrder(ctx context.Context, orderID uuid.UUID) (*payment.Transaction, error) {
	release := s.locks.Acquire(orderID)
	defer release()

	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPendingPayment && o.Status != order.StatusPaymentFailed {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Order in status %s cannot start a payment", o.Status))
	}

	existing, err := s.transactions.FindActiveByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("DUPLICATE_PAYMENT",
			fmt.Sprintf("Order already has a %s payment transaction", existing.Status))
	}

	gwOrder, err := callGateway(ctx, s.cfg.GatewayTimeout, func(ctx context.Context) (*payment.GatewayOrder, error) {
		return s.gateway.CreateOrder(ctx, o.TotalAmount, o.Currency, o.OrderNumber)
	})
	if err != nil {
		return nil, err
	}

	tx, err := payment.NewTransaction(o.ID, o.UserID, gwOrder.ID, o.TotalAmount, o.Currency)
	if err != nil {
		return nil, err
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		return nil, err
	}

	// a retry after a failed attempt restarts the payment flow
	if o.Status == order.StatusPaymentFailed {
		if _, err := s.orderSvc.Transition(ctx, o.ID, order.StatusPendingPayment, nil, "payment retried"); err != nil {
			return nil, err
		}
	}

	s.logger.Info("payment order created",
		zap.String("order_id", o.ID.String()),
		zap.String("gateway_order_id", gwOrder.ID))
	return tx, nil
}

// Verify is the synchronous client-driven confirmation path. The signature
// is checked first; a mismatch fails the transaction without touching the
// order. On a valid signature the authoritative payment detail is fetched
// from the gateway and applied through the shared capture handler.
func (s *Service) Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*payment.Transaction, error) {
	tx, err := s.transactions.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(tx.OrderID)
	defer release()

	// reload under the lock; a webhook may have advanced the transaction
	tx, err = s.transactions.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}

	if !payment.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature, s.cfg.VerifySecret) {
		// only a pre-capture attempt is failed; a settled capture stays put
		if tx.Status != payment.StatusCaptured {
			expectedVersion := tx.Version
			if ferr := tx.MarkFailed("Invalid signature"); ferr == nil {
				if serr := s.transactions.SaveWithLock(ctx, tx, expectedVersion); serr != nil {
					s.logger.Error("failed to persist signature failure",
						zap.String("transaction_id", tx.ID.String()), zap.Error(serr))
				}
			}
		}
		return nil, shared.NewDomainError("SIGNATURE_MISMATCH", "Payment signature verification failed")
	}

	detail, err := callGateway(ctx, s.cfg.GatewayTimeout, func(ctx context.Context) (*payment.GatewayPayment, error) {
		return s.gateway.FetchPayment(ctx, gatewayPaymentID)
	})
	if err != nil {
		return nil, err
	}

	switch detail.Status {
	case "captured":
		if err := s.applyCapture(ctx, tx, gatewayPaymentID, signature, detail.Method, detail.Amount); err != nil {
			return nil, err
		}
	case "authorized":
		expectedVersion := tx.Version
		if err := tx.MarkAuthorized(gatewayPaymentID); err != nil {
			return nil, err
		}
		if err := s.transactions.SaveWithLock(ctx, tx, expectedVersion); err != nil {
			return nil, err
		}
	default:
		return nil, shared.NewDomainError("UNEXPECTED_PAYMENT_STATE",
			fmt.Sprintf("Gateway reports payment in status %q", detail.Status))
	}

	return tx, nil
}

// applyCapture is the shared state-conditional capture handler used by
// verify and by the webhook. It is idempotent: an already-captured
// transaction is not re-captured and the order is only confirmed while it
// is still pending_payment. The caller must hold the order lock.
func (s *Service) applyCapture(ctx context.Context, tx *payment.Transaction, gatewayPaymentID, signature, method string, amount decimal.Decimal) error {
	if tx.Status != payment.StatusCaptured {
		expectedVersion := tx.Version
		if err := tx.MarkCaptured(gatewayPaymentID, signature, method); err != nil {
			return err
		}
		if err := s.transactions.SaveWithLock(ctx, tx, expectedVersion); err != nil {
			return err
		}
	}

	o, err := s.orders.FindByID(ctx, tx.OrderID)
	if err != nil {
		return err
	}
	if o.Status != order.StatusPendingPayment {
		return nil
	}

	confirmed, err := s.orderSvc.Transition(ctx, tx.OrderID, order.StatusConfirmed, nil, "payment captured")
	if err != nil {
		return err
	}

	expectedVersion := confirmed.Version
	confirmed.RecordPayment(method, amount, time.Now())
	if err := s.orders.SaveWithLock(ctx, confirmed, expectedVersion); err != nil {
		return err
	}

	s.logger.Info("payment captured",
		zap.String("order_id", tx.OrderID.String()),
		zap.String("gateway_payment_id", gatewayPaymentID))
	return nil
}

// applyFailure marks the transaction failed and moves a still-pending
// order to payment_failed. Idempotent under webhook redelivery; a failure
// signal arriving after capture is dropped, the capture already won.
func (s *Service) applyFailure(ctx context.Context, tx *payment.Transaction, reason string) error {
	if tx.Status == payment.StatusCaptured || tx.Status == payment.StatusRefunded {
		s.logger.Warn("ignoring failure signal for settled transaction",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("status", string(tx.Status)))
		return nil
	}
	if tx.Status != payment.StatusFailed {
		expectedVersion := tx.Version
		if err := tx.MarkFailed(reason); err != nil {
			return err
		}
		if err := s.transactions.SaveWithLock(ctx, tx, expectedVersion); err != nil {
			return err
		}
	}

	o, err := s.orders.FindByID(ctx, tx.OrderID)
	if err != nil {
		return err
	}
	if o.Status != order.StatusPendingPayment {
		return nil
	}
	updated, err := s.orderSvc.Transition(ctx, tx.OrderID, order.StatusPaymentFailed, nil, reason)
	if err != nil {
		return err
	}
	expectedVersion := updated.Version
	updated.RecordPaymentFailure()
	return s.orders.SaveWithLock(ctx, updated, expectedVersion)
}

// Refund requests a refund against a captured transaction. Partial refunds
// accumulate; the transaction becomes refunded only once the cumulative
// amount covers the full capture.
func (s *Service) Refund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string, actorID *uuid.UUID) (*payment.Transaction, error) {
	release := s.locks.Acquire(orderID)
	defer release()

	tx, err := s.transactions.FindActiveByOrderID(ctx, orderID)
	if errors.Is(err, shared.ErrNotFound) {
		// a fully refunded transaction is terminal and no longer active;
		// asking for more is an over-refund, not a missing record
		if history, herr := s.transactions.FindByOrderID(ctx, orderID); herr == nil &&
			len(history) > 0 && history[0].Status == payment.StatusRefunded {
			return nil, shared.NewDomainError("REFUND_EXCEEDS_AVAILABLE",
				"Transaction is already fully refunded")
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if tx.Status != payment.StatusCaptured {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot refund transaction in status %s", tx.Status))
	}
	if amount.GreaterThan(tx.RefundableAmount()) {
		return nil, shared.NewDomainError("REFUND_EXCEEDS_AVAILABLE",
			fmt.Sprintf("Refund amount %s exceeds refundable %s", amount, tx.RefundableAmount()))
	}

	gwRefund, err := callGateway(ctx, s.cfg.GatewayTimeout, func(ctx context.Context) (*payment.GatewayRefund, error) {
		return s.gateway.CreateRefund(ctx, tx.GatewayPaymentID, amount)
	})
	if err != nil {
		return nil, err
	}

	expectedVersion := tx.Version
	if err := tx.ApplyRefund(amount, gwRefund.ID, reason, actorID); err != nil {
		return nil, err
	}
	if err := s.transactions.SaveWithLock(ctx, tx, expectedVersion); err != nil {
		return nil, err
	}

	o, err := s.orders.FindByID(ctx, orderID)
	if err == nil {
		orderVersion := o.Version
		o.RecordRefund(amount)
		if serr := s.orders.SaveWithLock(ctx, o, orderVersion); serr != nil {
			s.logger.Error("failed to record refund on order",
				zap.String("order_id", orderID.String()), zap.Error(serr))
		}
	}

	s.logger.Info("refund applied",
		zap.String("order_id", orderID.String()),
		zap.String("refund_id", gwRefund.ID),
		zap.String("amount", amount.String()),
		zap.String("transaction_status", string(tx.Status)))
	return tx, nil
}

// GetTransaction returns the payment transaction history for an order
func (s *Service) GetTransactions(ctx context.Context, orderID uuid.UUID) ([]payment.Transaction, error) {
	return s.transactions.FindByOrderID(ctx, orderID)
}

// GetTransactionByGatewayOrderID returns the transaction opened for a
// gateway order
func (s *Service) GetTransactionByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*payment.Transaction, error) {
	return s.transactions.FindByGatewayOrderID(ctx, gatewayOrderID)
}
