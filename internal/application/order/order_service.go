package order

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	invapp "github.com/toybox/backend/internal/application/inventory"
	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/order"
	"github.com/toybox/backend/internal/domain/shared"
)

// Notifier delivers order status updates to the customer. Calls are
// fire-and-forget: a failed notification never fails the transition.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, orderNumber string, status order.Status) error
}

// NoopNotifier discards all notifications
type NoopNotifier struct{}

// NotifyStatusChange does nothing
func (NoopNotifier) NotifyStatusChange(context.Context, string, order.Status) error { return nil }

// CreateOrderItemInput is one requested line item
type CreateOrderItemInput struct {
	ToyID    uuid.UUID
	Quantity int
}

// Service coordinates order lifecycle transitions with their inventory
// side effects. Reservation failures abort the transition that triggered
// them; the order is never saved in a state its side effects did not reach.
type Service struct {
	orders       order.Repository
	toys         inventory.ToyRepository
	reservations *invapp.ReservationService
	notifier     Notifier
	logger       *zap.Logger
}

// NewService creates a new order service
func NewService(
	orders order.Repository,
	toys inventory.ToyRepository,
	reservations *invapp.ReservationService,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Service{
		orders:       orders,
		toys:         toys,
		reservations: reservations,
		notifier:     notifier,
		logger:       logger,
	}
}

const orderNumberAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// pricePerPoint converts subscription points into a charge amount
var pricePerPoint = decimal.NewFromInt(199)

func pointsPrice(points int) decimal.Decimal {
	return decimal.NewFromInt(int64(points)).Mul(pricePerPoint)
}

// GenerateOrderNumber produces a TIQ-prefixed, human-readable order number
func GenerateOrderNumber() string {
	var b strings.Builder
	b.WriteString("TIQ")
	b.WriteString(fmt.Sprintf("%d", time.Now().UnixMilli()%100000000))
	for i := 0; i < 4; i++ {
		b.WriteByte(orderNumberAlphabet[rand.Intn(len(orderNumberAlphabet))])
	}
	return b.String()
}

// CreateOrder places a new order in pending_payment. Prices and the
// returnable flag are captured from the catalog at creation time.
func (s *Service) CreateOrder(ctx context.Context, userID uuid.UUID, items []CreateOrderItemInput) (*order.Order, error) {
	if len(items) == 0 {
		return nil, shared.NewDomainError("NO_ITEMS", "Order must contain at least one item")
	}

	inputs := make([]order.NewItemInput, 0, len(items))
	returnable := true
	for _, item := range items {
		toy, err := s.toys.FindByID(ctx, item.ToyID)
		if err != nil {
			return nil, err
		}
		if !toy.IsActive {
			return nil, shared.NewDomainError("TOY_UNAVAILABLE",
				fmt.Sprintf("Toy %s is not available for ordering", toy.Name))
		}
		if toy.AvailableQuantity < item.Quantity {
			return nil, shared.NewDomainError("INSUFFICIENT_STOCK",
				fmt.Sprintf("Toy %s has %d available, %d requested", toy.Name, toy.AvailableQuantity, item.Quantity))
		}
		if !toy.IsReturnable {
			returnable = false
		}
		inputs = append(inputs, order.NewItemInput{
			ToyID:       toy.ID,
			Name:        toy.Name,
			Quantity:    item.Quantity,
			Points:      toy.Points,
			PriceAtTime: pointsPrice(toy.Points),
		})
	}

	o, err := order.NewOrder(GenerateOrderNumber(), userID, inputs)
	if err != nil {
		return nil, err
	}
	o.IsReturnable = returnable

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.Int("items", len(o.Items)))
	return o, nil
}

// Transition moves an order to newStatus and runs the side-effect hook
// keyed by the (previous, new) status pair. Inventory failures abort the
// transition; a save conflict after a successful reservation triggers the
// compensating release so no stock stays held for an unconfirmed order.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, newStatus order.Status, actorID *uuid.UUID, notes string) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	previous := o.Status
	expectedVersion := o.Version
	if err := o.Transition(newStatus, actorID, notes); err != nil {
		return nil, err
	}

	reserved := false
	switch {
	case previous == order.StatusPendingPayment && newStatus == order.StatusConfirmed:
		items := make([]invapp.ReserveItemInput, 0, len(o.Items))
		for _, item := range o.Items {
			items = append(items, invapp.ReserveItemInput{ToyID: item.ToyID, Quantity: item.Quantity})
		}
		if _, err := s.reservations.ReserveItems(ctx, o.ID, o.UserID, items); err != nil {
			return nil, err
		}
		reserved = true

	case newStatus == order.StatusCancelled:
		if _, err := s.reservations.ReleaseReservation(ctx, o.ID); err != nil {
			return nil, err
		}

	case newStatus == order.StatusDelivered:
		if _, err := s.reservations.FulfillReservations(ctx, o.ID); err != nil {
			return nil, err
		}

	case newStatus == order.StatusReturnProcessed:
		if _, err := s.reservations.ReturnToStock(ctx, o.ID, inventory.ReasonReturnReceived, notes); err != nil {
			return nil, err
		}
	}

	if err := s.orders.SaveWithLock(ctx, o, expectedVersion); err != nil {
		if reserved {
			if _, relErr := s.reservations.ReleaseReservation(ctx, o.ID); relErr != nil {
				s.logger.Error("failed to release reservation after save conflict",
					zap.String("order_id", o.ID.String()),
					zap.Error(relErr))
			}
		}
		return nil, err
	}

	s.logger.Info("order transitioned",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(newStatus)))

	s.notify(o.OrderNumber, newStatus)
	return o, nil
}

// notify delivers the status change in the background; errors are logged
// and swallowed
func (s *Service) notify(orderNumber string, status order.Status) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.NotifyStatusChange(ctx, orderNumber, status); err != nil {
			s.logger.Warn("order notification failed",
				zap.String("order_number", orderNumber),
				zap.String("status", string(status)),
				zap.Error(err))
		}
	}()
}

// CancelOrder cancels an order if it has not entered fulfillment
func (s *Service) CancelOrder(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, reason string) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanBeCancelled() {
		return nil, shared.NewDomainError("CANNOT_CANCEL",
			fmt.Sprintf("Order in status %s can no longer be cancelled", o.Status))
	}
	return s.Transition(ctx, orderID, order.StatusCancelled, actorID, reason)
}

// RequestReturn starts a return for a delivered order inside its return window
func (s *Service) RequestReturn(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, reason string) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanBeReturnedAt(time.Now()) {
		return nil, shared.NewDomainError("RETURN_WINDOW_CLOSED",
			"Order is not eligible for return")
	}
	o2, err := s.Transition(ctx, orderID, order.StatusReturnRequested, actorID, reason)
	if err != nil {
		return nil, err
	}
	expectedVersion := o2.Version
	o2.ReturnReason = reason
	if err := s.orders.SaveWithLock(ctx, o2, expectedVersion); err != nil {
		return nil, err
	}
	return o2, nil
}

// GetOrder returns an order by ID
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.orders.FindByID(ctx, orderID)
}

// GetOrderByNumber returns an order by its public order number
func (s *Service) GetOrderByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	return s.orders.FindByOrderNumber(ctx, orderNumber)
}

// ListUserOrders returns a user's orders, newest first
func (s *Service) ListUserOrders(ctx context.Context, userID uuid.UUID, filter shared.Filter) (shared.Paginated[*order.Order], error) {
	return s.orders.FindByUserID(ctx, userID, filter)
}

// ListOrdersByStatus returns orders in a given status
func (s *Service) ListOrdersByStatus(ctx context.Context, status order.Status, filter shared.Filter) (shared.Paginated[*order.Order], error) {
	if !status.IsValid() {
		return shared.Paginated[*order.Order]{}, shared.NewDomainError("INVALID_STATUS",
			fmt.Sprintf("Unknown order status %q", string(status)))
	}
	return s.orders.FindByStatus(ctx, status, filter)
}

// StatusCounts returns the number of orders per status for dashboards
func (s *Service) StatusCounts(ctx context.Context) (map[order.Status]int64, error) {
	return s.orders.CountByStatus(ctx)
}
