package payment

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/toybox/backend/internal/domain/shared"
)

// Webhook event names pushed by the gateway
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
	EventRefundProcessed = "refund.processed"
)

// WebhookEvent is the decoded form of one gateway notification. Exactly one
// of the typed payload fields is set, matching Event; RawBody always holds
// the original bytes for audit.
type WebhookEvent struct {
	Event   string
	EventID string
	RawBody []byte

	Captured *CapturedPayload
	Failed   *FailedPayload
	Paid     *PaidPayload
	Refund   *RefundPayload
}

// CapturedPayload carries a payment.captured or order.paid notification
type CapturedPayload struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Amount           decimal.Decimal
	Method           string
}

// FailedPayload carries a payment.failed notification
type FailedPayload struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Reason           string
}

// PaidPayload carries an order.paid notification
type PaidPayload struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Amount           decimal.Decimal
	Method           string
}

// RefundPayload carries a refund.processed notification
type RefundPayload struct {
	GatewayPaymentID string
	RefundID         string
	Amount           decimal.Decimal
}

type webhookEnvelope struct {
	Event   string          `json:"event"`
	EventID string          `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
}

type capturedBody struct {
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

type failedBody struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

type refundBody struct {
	PaymentID string          `json:"payment_id"`
	RefundID  string          `json:"refund_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// ParseWebhookEvent decodes a raw webhook body into a tagged event.
// Unrecognized event names produce an event with no typed payload; the
// caller logs and ignores those rather than failing.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, shared.NewDomainError("INVALID_WEBHOOK_PAYLOAD", "Webhook body is not valid JSON")
	}
	if env.Event == "" {
		return nil, shared.NewDomainError("INVALID_WEBHOOK_PAYLOAD", "Webhook body is missing event name")
	}

	ev := &WebhookEvent{
		Event:   env.Event,
		EventID: env.EventID,
		RawBody: body,
	}

	switch env.Event {
	case EventPaymentCaptured:
		var b capturedBody
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return nil, shared.NewDomainError("INVALID_WEBHOOK_PAYLOAD", "Malformed payment.captured payload")
		}
		ev.Captured = &CapturedPayload{
			GatewayOrderID:   b.OrderID,
			GatewayPaymentID: b.PaymentID,
			Amount:           b.Amount,
			Method:           b.Method,
		}
	case EventOrderPaid:
		var b capturedBody
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return nil, shared.NewDomainError("INVALID_WEBHOOK_PAYLOAD", "Malformed order.paid payload")
		}
		ev.Paid = &PaidPayload{
			GatewayOrderID:   b.OrderID,
			GatewayPaymentID: b.PaymentID,
			Amount:           b.Amount,
			Method:           b.Method,
		}
	case EventPaymentFailed:
		var b failedBody
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return nil, shared.NewDomainError("INVALID_WEBHOOK_PAYLOAD", "Malformed payment.failed payload")
		}
		ev.Failed = &FailedPayload{
			GatewayOrderID:   b.OrderID,
			GatewayPaymentID: b.PaymentID,
			Reason:           b.Reason,
		}
	case EventRefundProcessed:
		var b refundBody
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return nil, shared.NewDomainError("INVALID_WEBHOOK_PAYLOAD", "Malformed refund.processed payload")
		}
		ev.Refund = &RefundPayload{
			GatewayPaymentID: b.PaymentID,
			RefundID:         b.RefundID,
			Amount:           b.Amount,
		}
	}

	return ev, nil
}

// IsRecognized reports whether the event name maps to a handler
func (e *WebhookEvent) IsRecognized() bool {
	switch e.Event {
	case EventPaymentCaptured, EventPaymentFailed, EventOrderPaid, EventRefundProcessed:
		return true
	}
	return false
}
