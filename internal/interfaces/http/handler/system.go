package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/toybox/backend/internal/infrastructure/persistence"
)

// SystemHandler serves health probes
type SystemHandler struct {
	BaseHandler
	db *persistence.Database
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(db *persistence.Database) *SystemHandler {
	return &SystemHandler{db: db}
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	status := "ok"
	httpStatus := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}
	c.JSON(httpStatus, gin.H{"status": status})
}
