package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	payapp "github.com/toybox/backend/internal/application/payment"
	"github.com/toybox/backend/internal/domain/shared"
	"github.com/toybox/backend/internal/interfaces/http/dto"
)

// SignatureHeader carries the gateway's HMAC over the raw body
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives gateway notifications. Rejections the gateway
// should not retry (bad signature, malformed body) return 4xx; any
// processing failure returns 5xx so the gateway redelivers.
type WebhookHandler struct {
	BaseHandler
	webhooks *payapp.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhooks *payapp.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Receive handles POST /webhooks/payment
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" {
		h.BadRequest(c, "Missing webhook signature header")
		return
	}

	if err := h.webhooks.Process(c.Request.Context(), body, signature); err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			switch domainErr.Code {
			case "SIGNATURE_MISMATCH", "INVALID_WEBHOOK_PAYLOAD":
				h.HandleError(c, err)
				return
			}
		}
		// retryable: the gateway redelivers on 5xx
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInternal, "Webhook processing failed", getRequestID(c)))
		return
	}

	h.Success(c, gin.H{"received": true})
}
