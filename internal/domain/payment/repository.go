package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/toybox/backend/internal/domain/shared"
)

// Repository defines persistence operations for payment transactions
type Repository interface {
	shared.Repository[Transaction]
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]Transaction, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Transaction, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Transaction, error)
	FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*Transaction, error)
	SaveWithLock(ctx context.Context, t *Transaction, expectedVersion int) error
}
