package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toybox/backend/internal/infrastructure/auth"
	"github.com/toybox/backend/internal/infrastructure/config"
	"github.com/toybox/backend/internal/interfaces/http/handler"
	"github.com/toybox/backend/internal/interfaces/http/middleware"
)

// Dependencies carries the handlers the router wires up
type Dependencies struct {
	System    *handler.SystemHandler
	Orders    *handler.OrderHandler
	Inventory *handler.InventoryHandler
	Payments  *handler.PaymentHandler
	Webhooks  *handler.WebhookHandler
	JWT       *auth.JWTService
}

// New builds the gin engine with all middleware and routes registered
func New(cfg *config.Config, deps Dependencies, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		middleware.Recovery(logger),
	)

	engine.GET("/health", deps.System.Health)

	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuth(deps.JWT))

	api.GET("/health", deps.System.Health)

	// webhook endpoint authenticates by signature, not bearer token
	api.POST("/webhooks/payment", deps.Webhooks.Receive)

	orders := api.Group("/orders")
	{
		orders.POST("", deps.Orders.Create)
		orders.GET("", deps.Orders.List)
		orders.GET("/:id", deps.Orders.Get)
		orders.GET("/number/:number", deps.Orders.GetByNumber)
		orders.POST("/:id/cancel", deps.Orders.Cancel)
		orders.POST("/:id/return", deps.Orders.RequestReturn)
	}

	payments := api.Group("/payments")
	{
		payments.POST("/orders/:id", deps.Payments.CreateOrder)
		payments.GET("/orders/:id", deps.Payments.ListTransactions)
		payments.POST("/verify", deps.Payments.Verify)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/orders", deps.Orders.ListByStatus)
		admin.GET("/orders/status-counts", deps.Orders.StatusCounts)
		admin.POST("/orders/:id/transition", deps.Orders.Transition)

		admin.POST("/inventory/toys", deps.Inventory.CreateToy)
		admin.GET("/inventory/toys", deps.Inventory.ListToys)
		admin.GET("/inventory/toys/low-stock", deps.Inventory.ListLowStock)
		admin.GET("/inventory/toys/:id", deps.Inventory.GetToy)
		admin.POST("/inventory/toys/:id/adjust", deps.Inventory.AdjustStock)
		admin.GET("/inventory/toys/:id/history", deps.Inventory.ToyHistory)
		admin.POST("/inventory/toys/:id/check-alerts", deps.Inventory.CheckAlerts)
		admin.GET("/inventory/alerts", deps.Inventory.ActiveAlerts)
		admin.POST("/inventory/alerts/:id/acknowledge", deps.Inventory.AcknowledgeAlert)

		admin.POST("/payments/orders/:id/refund", deps.Payments.Refund)
	}

	return engine
}
