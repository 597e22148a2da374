package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	orderapp "github.com/toybox/backend/internal/application/order"
	"github.com/toybox/backend/internal/domain/order"
	"github.com/toybox/backend/internal/interfaces/http/middleware"
)

// OrderHandler exposes the order lifecycle over HTTP
type OrderHandler struct {
	BaseHandler
	orders *orderapp.Service
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *orderapp.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrderRequest is the body for POST /orders
type CreateOrderRequest struct {
	Items []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateOrderItemRequest is one line item in an order request
type CreateOrderItemRequest struct {
	ToyID    string `json:"toy_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// TransitionRequest is the body for POST /orders/:id/transition
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes" binding:"max=500"`
}

// ReasonRequest carries a free-form reason for cancel and return requests
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// OrderResponse wraps an order with its derived progress
type OrderResponse struct {
	*order.Order
	Progress order.Progress `json:"progress"`
}

func newOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{Order: o, Progress: order.ProgressOf(o.Status)}
}

// Create handles POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	items := make([]orderapp.CreateOrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		toyID, err := uuid.Parse(item.ToyID)
		if err != nil {
			h.BadRequest(c, "Invalid toy ID")
			return
		}
		items = append(items, orderapp.CreateOrderItemInput{ToyID: toyID, Quantity: item.Quantity})
	}

	o, err := h.orders.CreateOrder(c.Request.Context(), userID, items)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, newOrderResponse(o))
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, o.UserID) {
		return
	}
	h.Success(c, newOrderResponse(o))
}

// GetByNumber handles GET /orders/number/:number
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	o, err := h.orders.GetOrderByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, o.UserID) {
		return
	}
	h.Success(c, newOrderResponse(o))
}

// List handles GET /orders, scoped to the authenticated user
func (h *OrderHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	filter, err := listFilter(c)
	if err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.orders.ListUserOrders(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListByStatus handles GET /admin/orders?status=
func (h *OrderHandler) ListByStatus(c *gin.Context) {
	status := order.Status(c.Query("status"))
	if !status.IsValid() {
		h.BadRequest(c, "Unknown order status")
		return
	}

	filter, err := listFilter(c)
	if err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.orders.ListOrdersByStatus(c.Request.Context(), status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Transition handles POST /admin/orders/:id/transition
func (h *OrderHandler) Transition(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	o, err := h.orders.Transition(c.Request.Context(), id, order.Status(req.Status), getActorID(c), req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newOrderResponse(o))
}

// Cancel handles POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	existing, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, existing.UserID) {
		return
	}

	o, err := h.orders.CancelOrder(c.Request.Context(), id, getActorID(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newOrderResponse(o))
}

// RequestReturn handles POST /orders/:id/return
func (h *OrderHandler) RequestReturn(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	existing, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.authorizeOwner(c, existing.UserID) {
		return
	}

	o, err := h.orders.RequestReturn(c.Request.Context(), id, getActorID(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newOrderResponse(o))
}

// StatusCounts handles GET /admin/orders/status-counts
func (h *OrderHandler) StatusCounts(c *gin.Context) {
	counts, err := h.orders.StatusCounts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}
