package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/domain/shared"
)

// WebhookService processes gateway notifications. Delivery is
// at-least-once, possibly duplicated and out of order, so every handler is
// state-conditional and events are deduplicated through the idempotency
// store. A processing failure returns a retryable error so the gateway
// redelivers.
type WebhookService struct {
	payments    *Service
	idempotency shared.IdempotencyStore
	idemCfg     shared.IdempotencyConfig
	secret      string
	logger      *zap.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(payments *Service, idempotency shared.IdempotencyStore, idemCfg shared.IdempotencyConfig, secret string, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		payments:    payments,
		idempotency: idempotency,
		idemCfg:     idemCfg,
		secret:      secret,
		logger:      logger,
	}
}

// eventKey identifies an event for deduplication. Gateways that omit an
// event ID fall back to a digest of the raw body.
func eventKey(ev *payment.WebhookEvent) string {
	if ev.EventID != "" {
		return ev.Event + ":" + ev.EventID
	}
	sum := sha256.Sum256(ev.RawBody)
	return ev.Event + ":" + hex.EncodeToString(sum[:])
}

// Process validates, deduplicates and dispatches one webhook delivery.
// A signature mismatch is rejected with no side effects. Unrecognized
// event names are logged and acknowledged.
func (s *WebhookService) Process(ctx context.Context, body []byte, signature string) error {
	if !payment.VerifyWebhookSignature(body, signature, s.secret) {
		return shared.NewDomainError("SIGNATURE_MISMATCH", "Webhook signature verification failed")
	}

	ev, err := payment.ParseWebhookEvent(body)
	if err != nil {
		return err
	}

	if !ev.IsRecognized() {
		s.logger.Info("ignoring unrecognized webhook event", zap.String("event", ev.Event))
		return nil
	}

	if s.idemCfg.Enabled && s.idempotency != nil {
		processed, err := s.idempotency.IsProcessed(ctx, eventKey(ev))
		if err != nil {
			s.logger.Warn("idempotency check failed, processing anyway", zap.Error(err))
		} else if processed {
			s.logger.Info("skipping already-processed webhook event",
				zap.String("event", ev.Event), zap.String("event_id", ev.EventID))
			return nil
		}
	}

	if err := s.dispatch(ctx, ev); err != nil {
		return err
	}

	if s.idemCfg.Enabled && s.idempotency != nil {
		if _, err := s.idempotency.MarkProcessed(ctx, eventKey(ev), s.idemCfg.TTL); err != nil {
			s.logger.Warn("failed to mark webhook event processed", zap.Error(err))
		}
	}
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, ev *payment.WebhookEvent) error {
	switch ev.Event {
	case payment.EventPaymentCaptured:
		return s.handleCaptured(ctx, ev.Captured.GatewayOrderID, ev.Captured.GatewayPaymentID, ev.Captured.Method, ev)
	case payment.EventOrderPaid:
		return s.handleCaptured(ctx, ev.Paid.GatewayOrderID, ev.Paid.GatewayPaymentID, ev.Paid.Method, ev)
	case payment.EventPaymentFailed:
		return s.handleFailed(ctx, ev)
	case payment.EventRefundProcessed:
		return s.handleRefundProcessed(ctx, ev)
	}
	return nil
}

func (s *WebhookService) handleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID, method string, ev *payment.WebhookEvent) error {
	tx, err := s.payments.transactions.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}

	release := s.payments.locks.Acquire(tx.OrderID)
	defer release()

	tx, err = s.payments.transactions.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	tx.AttachWebhookPayload(ev.RawBody)

	amount := tx.Amount
	if ev.Captured != nil && !ev.Captured.Amount.IsZero() {
		amount = ev.Captured.Amount
	} else if ev.Paid != nil && !ev.Paid.Amount.IsZero() {
		amount = ev.Paid.Amount
	}

	return s.payments.applyCapture(ctx, tx, gatewayPaymentID, "", method, amount)
}

func (s *WebhookService) handleFailed(ctx context.Context, ev *payment.WebhookEvent) error {
	tx, err := s.payments.transactions.FindByGatewayOrderID(ctx, ev.Failed.GatewayOrderID)
	if err != nil {
		return err
	}

	release := s.payments.locks.Acquire(tx.OrderID)
	defer release()

	tx, err = s.payments.transactions.FindByGatewayOrderID(ctx, ev.Failed.GatewayOrderID)
	if err != nil {
		return err
	}
	tx.AttachWebhookPayload(ev.RawBody)

	reason := ev.Failed.Reason
	if reason == "" {
		reason = "payment failed"
	}
	return s.payments.applyFailure(ctx, tx, reason)
}

// handleRefundProcessed reconciles a gateway-initiated refund notification
// with the local transaction. A refund already recorded locally (matching
// refund ID) is acknowledged without reapplying.
func (s *WebhookService) handleRefundProcessed(ctx context.Context, ev *payment.WebhookEvent) error {
	tx, err := s.payments.transactions.FindByGatewayPaymentID(ctx, ev.Refund.GatewayPaymentID)
	if err != nil {
		return err
	}

	release := s.payments.locks.Acquire(tx.OrderID)
	defer release()

	tx, err = s.payments.transactions.FindByGatewayPaymentID(ctx, ev.Refund.GatewayPaymentID)
	if err != nil {
		return err
	}
	if tx.Refund.RefundID == ev.Refund.RefundID && ev.Refund.RefundID != "" {
		return nil
	}
	if tx.Status == payment.StatusRefunded {
		return nil
	}
	if tx.Status != payment.StatusCaptured {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Refund notification for transaction in status %s", tx.Status))
	}

	tx.AttachWebhookPayload(ev.RawBody)
	expectedVersion := tx.Version
	if err := tx.ApplyRefund(ev.Refund.Amount, ev.Refund.RefundID, "gateway refund", nil); err != nil {
		return err
	}
	if err := s.payments.transactions.SaveWithLock(ctx, tx, expectedVersion); err != nil {
		return err
	}

	o, err := s.payments.orders.FindByID(ctx, tx.OrderID)
	if err == nil {
		orderVersion := o.Version
		o.RecordRefund(ev.Refund.Amount)
		if serr := s.payments.orders.SaveWithLock(ctx, o, orderVersion); serr != nil {
			s.logger.Error("failed to record refund on order",
				zap.String("order_id", tx.OrderID.String()), zap.Error(serr))
		}
	}
	return nil
}
