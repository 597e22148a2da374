package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

// ReserveItemInput is one line item to reserve for an order
type ReserveItemInput struct {
	ToyID    uuid.UUID
	Quantity int
}

// ReservationService manages temporary stock holds against orders and the
// compensating ledger entries that release them.
type ReservationService struct {
	scope      TransactionScope
	ttl        time.Duration
	sweepLimit int
	logger     *zap.Logger
}

// NewReservationService creates a new reservation service. A non-positive
// ttl falls back to the 24h default.
func NewReservationService(scope TransactionScope, ttl time.Duration, logger *zap.Logger) *ReservationService {
	if ttl <= 0 {
		ttl = inventory.DefaultReservationTTL
	}
	return &ReservationService{
		scope:      scope,
		ttl:        ttl,
		sweepLimit: 500,
		logger:     logger,
	}
}

// ReserveItems creates one active reservation and one order_reserve ledger
// entry per line item. The whole call runs in a single transaction: if any
// item cannot be reserved, nothing is held.
func (s *ReservationService) ReserveItems(ctx context.Context, orderID, userID uuid.UUID, items []ReserveItemInput) ([]inventory.Reservation, error) {
	if len(items) == 0 {
		return nil, shared.NewDomainError("NO_ITEMS", "Nothing to reserve")
	}

	var created []inventory.Reservation
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, item := range items {
			toy, err := repos.ToyRepo().FindByID(ctx, item.ToyID)
			if err != nil {
				return err
			}
			if toy.AvailableQuantity < item.Quantity {
				return shared.NewDomainError("INSUFFICIENT_STOCK",
					fmt.Sprintf("Toy %s has %d available, %d requested", toy.Name, toy.AvailableQuantity, item.Quantity))
			}

			r, err := inventory.NewReservation(item.ToyID, orderID, userID, item.Quantity, s.ttl)
			if err != nil {
				return err
			}
			if err := repos.ReservationRepo().Save(ctx, r); err != nil {
				return err
			}

			if _, err := applyQuantityChange(ctx, repos, s.logger, item.ToyID, -item.Quantity,
				inventory.ReasonOrderReserve, inventory.ChangeContext{
					OrderID: &orderID,
					UserID:  &userID,
				}); err != nil {
				return err
			}

			created = append(created, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory reserved",
		zap.String("order_id", orderID.String()),
		zap.Int("items", len(created)))
	return created, nil
}

// ReleaseReservation cancels every active reservation for the order and
// writes a compensating order_release ledger entry for each. Returns the
// number of reservations released. An order with no active reservations
// releases zero and is not an error.
func (s *ReservationService) ReleaseReservation(ctx context.Context, orderID uuid.UUID) (int, error) {
	released := 0
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		active, err := repos.ReservationRepo().FindActiveByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		for i := range active {
			r := &active[i]
			expectedVersion := r.Version
			if err := r.Cancel(); err != nil {
				return err
			}
			if err := repos.ReservationRepo().SaveWithLock(ctx, r, expectedVersion); err != nil {
				return err
			}
			if _, err := applyQuantityChange(ctx, repos, s.logger, r.ToyID, r.Quantity,
				inventory.ReasonOrderRelease, inventory.ChangeContext{
					OrderID: &orderID,
					UserID:  &r.UserID,
				}); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if released > 0 {
		s.logger.Info("reservations released",
			zap.String("order_id", orderID.String()),
			zap.Int("count", released))
	}
	return released, nil
}

// FulfillReservations marks the order's active reservations fulfilled when
// the order is delivered. The quantity was already deducted at reserve
// time, so no ledger entry is written here.
func (s *ReservationService) FulfillReservations(ctx context.Context, orderID uuid.UUID) (int, error) {
	fulfilled := 0
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		active, err := repos.ReservationRepo().FindActiveByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		for i := range active {
			r := &active[i]
			expectedVersion := r.Version
			if err := r.Fulfill(); err != nil {
				return err
			}
			if err := repos.ReservationRepo().SaveWithLock(ctx, r, expectedVersion); err != nil {
				return err
			}
			fulfilled++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fulfilled, nil
}

// ReturnToStock writes a positive ledger entry per line item of a processed
// return, putting the returned quantity back on the shelf. The credit is the
// net outstanding hold per toy: reserved minus already released minus already
// returned, so a reservation the expiry sweep or a cancel gave back is not
// credited a second time, and a repeat call credits nothing.
func (s *ReservationService) ReturnToStock(ctx context.Context, orderID uuid.UUID, reason inventory.ChangeReason, notes string) (int, error) {
	if reason != inventory.ReasonReturnReceived && reason != inventory.ReasonShipmentReturn {
		return 0, shared.NewDomainError("INVALID_REASON", "Return-to-stock requires a return reason code")
	}

	returned := 0
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		entries, err := repos.LedgerRepo().FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		outstanding := make(map[uuid.UUID]int)
		for _, e := range entries {
			switch e.Reason {
			case inventory.ReasonOrderReserve:
				outstanding[e.ToyID] += -e.Delta
			case inventory.ReasonOrderRelease, inventory.ReasonReturnReceived, inventory.ReasonShipmentReturn:
				outstanding[e.ToyID] -= e.Delta
			}
		}
		for _, e := range entries {
			if e.Reason != inventory.ReasonOrderReserve {
				continue
			}
			qty := outstanding[e.ToyID]
			if qty <= 0 {
				continue
			}
			delete(outstanding, e.ToyID)
			if _, err := applyQuantityChange(ctx, repos, s.logger, e.ToyID, qty,
				reason, inventory.ChangeContext{
					OrderID: &orderID,
					Notes:   notes,
				}); err != nil {
				return err
			}
			returned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("returned stock restored",
		zap.String("order_id", orderID.String()),
		zap.Int("items", returned))
	return returned, nil
}

// CleanupExpiredReservations sweeps active reservations whose TTL has
// passed, expiring each and writing the compensating ledger entry. Each
// reservation is its own transaction so a crash mid-sweep leaves no
// half-applied work, and rows already transitioned by a concurrent caller
// are skipped rather than double-released.
func (s *ReservationService) CleanupExpiredReservations(ctx context.Context) (int, error) {
	now := time.Now()

	var candidates []inventory.Reservation
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.ReservationRepo().FindExpired(ctx, now, s.sweepLimit)
		if err != nil {
			return err
		}
		candidates = found
		return nil
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range candidates {
		id := candidates[i].ID
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := repos.ReservationRepo().FindByID(ctx, id)
			if err != nil {
				return err
			}
			// a concurrent release or an earlier sweep pass may have won
			if !r.IsExpiredAt(now) {
				return nil
			}
			expectedVersion := r.Version
			if err := r.Expire(); err != nil {
				return err
			}
			if err := repos.ReservationRepo().SaveWithLock(ctx, r, expectedVersion); err != nil {
				return err
			}
			_, err = applyQuantityChange(ctx, repos, s.logger, r.ToyID, r.Quantity,
				inventory.ReasonOrderRelease, inventory.ChangeContext{
					OrderID: &r.OrderID,
					UserID:  &r.UserID,
					Notes:   "reservation expired",
				})
			if err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			// keep sweeping the remaining rows; this one retries next interval
			s.logger.Error("failed to expire reservation",
				zap.String("reservation_id", id.String()),
				zap.Error(err))
		}
	}

	if expired > 0 {
		s.logger.Info("expired reservations cleaned up", zap.Int("count", expired))
	}
	return expired, nil
}
