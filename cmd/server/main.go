package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	invapp "github.com/toybox/backend/internal/application/inventory"
	orderapp "github.com/toybox/backend/internal/application/order"
	payapp "github.com/toybox/backend/internal/application/payment"
	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/domain/shared"
	"github.com/toybox/backend/internal/infrastructure/auth"
	"github.com/toybox/backend/internal/infrastructure/cache"
	"github.com/toybox/backend/internal/infrastructure/config"
	"github.com/toybox/backend/internal/infrastructure/gateway"
	"github.com/toybox/backend/internal/infrastructure/logger"
	"github.com/toybox/backend/internal/infrastructure/persistence"
	"github.com/toybox/backend/internal/infrastructure/scheduler"
	"github.com/toybox/backend/internal/interfaces/http/handler"
	"github.com/toybox/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	log.Info("starting toybox backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	db, err := persistence.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repositories
	toyRepo := persistence.NewGormToyRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	transactionRepo := persistence.NewGormTransactionRepository(db.DB)

	// Inventory application services over a real transaction scope
	scope := persistence.NewGormTransactionScope(db.DB)
	ledgerSvc := invapp.NewLedgerService(scope, log)
	reservationSvc := invapp.NewReservationService(scope, cfg.Reservation.TTL, log)

	orderSvc := orderapp.NewService(orderRepo, toyRepo, reservationSvc, nil, log)

	// Payment gateway: mock for development, Razorpay otherwise
	var gw payment.Gateway
	if cfg.Payment.UseMockGateway {
		gw = gateway.NewMockGateway()
		log.Warn("using mock payment gateway")
	} else {
		gw, err = gateway.NewRazorpayAdapter(cfg.Payment)
		if err != nil {
			log.Fatal("failed to initialize payment gateway", zap.Error(err))
		}
	}

	paymentSvc := payapp.NewService(transactionRepo, orderRepo, orderSvc, gw, payapp.Config{
		VerifySecret:   cfg.Payment.VerifySecret,
		WebhookSecret:  cfg.Payment.WebhookSecret,
		GatewayTimeout: cfg.Payment.GatewayTimeout,
	}, log)

	// Webhook deduplication: redis when available, in-process otherwise
	var idemStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		idemStore, err = cache.NewRedisIdempotencyStore(cfg.Redis)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
	} else {
		idemStore = cache.NewMemoryIdempotencyStore()
		log.Info("using in-memory webhook idempotency store")
	}
	defer func() { _ = idemStore.Close() }()

	webhookSvc := payapp.NewWebhookService(paymentSvc, idemStore,
		shared.DefaultIdempotencyConfig(), cfg.Payment.WebhookSecret, log)

	// Hourly sweep of expired reservations
	sweeper := scheduler.NewReservationSweeper(reservationSvc, cfg.Reservation.SweepInterval, log)
	if cfg.Reservation.SweepEnabled {
		sweeper.Start()
		defer sweeper.Stop()
	}

	jwtSvc := auth.NewJWTService(cfg.JWT)

	engine := router.New(cfg, router.Dependencies{
		System:    handler.NewSystemHandler(db),
		Orders:    handler.NewOrderHandler(orderSvc),
		Inventory: handler.NewInventoryHandler(toyRepo, ledgerSvc),
		Payments:  handler.NewPaymentHandler(paymentSvc, orderSvc),
		Webhooks:  handler.NewWebhookHandler(webhookSvc),
		JWT:       jwtSvc,
	}, log)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
