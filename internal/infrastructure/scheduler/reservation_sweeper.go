package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	invapp "github.com/toybox/backend/internal/application/inventory"
)

// ReservationSweeper periodically expires stale inventory reservations.
// Runs are single-flight: a tick is skipped while the previous sweep is
// still in progress. A failed sweep is logged and retried on the next
// interval; it never stops the sweeper.
type ReservationSweeper struct {
	reservations *invapp.ReservationService
	interval     time.Duration
	logger       *zap.Logger

	mu        sync.Mutex
	isRunning bool
	sweeping  bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewReservationSweeper creates a sweeper with the given interval.
// A non-positive interval defaults to one hour.
func NewReservationSweeper(reservations *invapp.ReservationService, interval time.Duration, logger *zap.Logger) *ReservationSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReservationSweeper{
		reservations: reservations,
		interval:     interval,
		logger:       logger,
	}
}

// Start launches the periodic sweep. Calling Start on a running sweeper
// is a no-op.
func (s *ReservationSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.isRunning = true

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("reservation sweeper started", zap.Duration("interval", s.interval))
}

// Stop cancels the sweep loop and waits for an in-flight sweep to finish
func (s *ReservationSweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("reservation sweeper stopped")
}

func (s *ReservationSweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// SweepNow runs one sweep immediately, subject to the same single-flight
// guard as the ticker
func (s *ReservationSweeper) SweepNow(ctx context.Context) {
	s.sweep(ctx)
}

func (s *ReservationSweeper) sweep(ctx context.Context) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Warn("skipping reservation sweep, previous run still in progress")
		return
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	expired, err := s.reservations.CleanupExpiredReservations(ctx)
	if err != nil {
		s.logger.Error("reservation sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.logger.Info("reservation sweep completed", zap.Int("expired", expired))
	}
}
