package handler

import (
	"github.com/gin-gonic/gin"

	invapp "github.com/toybox/backend/internal/application/inventory"
	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/interfaces/http/middleware"
)

// InventoryHandler exposes catalog and stock administration over HTTP
type InventoryHandler struct {
	BaseHandler
	toys   inventory.ToyRepository
	ledger *invapp.LedgerService
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(toys inventory.ToyRepository, ledger *invapp.LedgerService) *InventoryHandler {
	return &InventoryHandler{toys: toys, ledger: ledger}
}

// CreateToyRequest is the body for POST /admin/inventory/toys
type CreateToyRequest struct {
	Name              string `json:"name" binding:"required,max=255"`
	SKU               string `json:"sku" binding:"required,max=64"`
	Category          string `json:"category" binding:"max=100"`
	Points            int    `json:"points" binding:"required,gt=0"`
	InitialQuantity   int    `json:"initial_quantity" binding:"omitempty,min=0"`
	LowStockThreshold int    `json:"low_stock_threshold" binding:"omitempty,min=1"`
	IsReturnable      *bool  `json:"is_returnable"`
}

// AdjustStockRequest is the body for POST /admin/inventory/toys/:id/adjust
type AdjustStockRequest struct {
	Delta int    `json:"delta" binding:"required"`
	Notes string `json:"notes" binding:"max=500"`
}

// CreateToy handles POST /admin/inventory/toys
func (h *InventoryHandler) CreateToy(c *gin.Context) {
	var req CreateToyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	toy, err := inventory.NewToy(req.Name, req.SKU, req.Category, req.Points)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if req.LowStockThreshold > 0 {
		toy.LowStockThreshold = req.LowStockThreshold
	}
	if req.IsReturnable != nil {
		toy.IsReturnable = *req.IsReturnable
	}

	if err := h.toys.Save(c.Request.Context(), toy); err != nil {
		h.HandleError(c, err)
		return
	}

	// initial stock arrives through the ledger like any other change
	if req.InitialQuantity > 0 {
		adminID, err := getUserID(c)
		if err != nil {
			h.Unauthorized(c, "Authentication required")
			return
		}
		if _, err := h.ledger.AdjustStock(c.Request.Context(), toy.ID, req.InitialQuantity, adminID, "initial stock"); err != nil {
			h.HandleError(c, err)
			return
		}
		toy, err = h.toys.FindByID(c.Request.Context(), toy.ID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
	}

	h.Created(c, toy)
}

// GetToy handles GET /admin/inventory/toys/:id
func (h *InventoryHandler) GetToy(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid toy ID")
		return
	}

	toy, err := h.toys.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toy)
}

// ListToys handles GET /admin/inventory/toys
func (h *InventoryHandler) ListToys(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	toys, err := h.toys.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	total, err := h.toys.Count(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, toys, total, filter.Page, filter.PageSize)
}

// ListLowStock handles GET /admin/inventory/toys/low-stock
func (h *InventoryHandler) ListLowStock(c *gin.Context) {
	toys, err := h.toys.FindLowStock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toys)
}

// AdjustStock handles POST /admin/inventory/toys/:id/adjust
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid toy ID")
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	adminID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	entry, err := h.ledger.AdjustStock(c.Request.Context(), id, req.Delta, adminID, req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// ToyHistory handles GET /admin/inventory/toys/:id/history
func (h *InventoryHandler) ToyHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid toy ID")
		return
	}

	filter, err := listFilter(c)
	if err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.ledger.GetToyHistory(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ActiveAlerts handles GET /admin/inventory/alerts
func (h *InventoryHandler) ActiveAlerts(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.ledger.GetActiveAlerts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// AcknowledgeAlert handles POST /admin/inventory/alerts/:id/acknowledge
func (h *InventoryHandler) AcknowledgeAlert(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid alert ID")
		return
	}

	adminID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.ledger.AcknowledgeAlert(c.Request.Context(), id, adminID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"acknowledged": true})
}

// CheckAlerts handles POST /admin/inventory/toys/:id/check-alerts
func (h *InventoryHandler) CheckAlerts(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid toy ID")
		return
	}

	if err := h.ledger.CheckStockAlerts(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"checked": true})
}
