package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	orderapp "github.com/toybox/backend/internal/application/order"
	payapp "github.com/toybox/backend/internal/application/payment"
	"github.com/toybox/backend/internal/interfaces/http/middleware"
)

// PaymentHandler exposes the payment reconciliation flow over HTTP
type PaymentHandler struct {
	BaseHandler
	payments *payapp.Service
	orders   *orderapp.Service
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *payapp.Service, orders *orderapp.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments, orders: orders}
}

// VerifyRequest is the body for POST /payments/verify
type VerifyRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

// RefundRequest is the body for POST /admin/payments/orders/:id/refund
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason" binding:"max=500"`
}

// CreateOrder handles POST /payments/orders/:id
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	o, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, o.UserID) {
		return
	}

	tx, err := h.payments.CreateOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, tx)
}

// Verify handles POST /payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	existing, err := h.payments.GetTransactionByGatewayOrderID(c.Request.Context(), req.GatewayOrderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, existing.UserID) {
		return
	}

	tx, err := h.payments.Verify(c.Request.Context(), req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tx)
}

// Refund handles POST /admin/payments/orders/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if !req.Amount.IsPositive() {
		h.BadRequest(c, "Refund amount must be positive")
		return
	}

	tx, err := h.payments.Refund(c.Request.Context(), orderID, req.Amount, req.Reason, getActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tx)
}

// ListTransactions handles GET /payments/orders/:id
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	o, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, o.UserID) {
		return
	}

	txs, err := h.payments.GetTransactions(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, txs)
}
