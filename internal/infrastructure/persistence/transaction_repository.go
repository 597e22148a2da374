package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/domain/shared"
)

// GormTransactionRepository implements payment.Repository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByID finds a transaction by its ID
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	var tx payment.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindAll finds all transactions matching the filter
func (r *GormTransactionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]payment.Transaction, error) {
	var out []payment.Transaction
	query := applyFilter(r.db.WithContext(ctx).Model(&payment.Transaction{}), filter)
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindByOrderID finds all transactions for an order, newest first
func (r *GormTransactionRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]payment.Transaction, error) {
	var out []payment.Transaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindByGatewayOrderID finds a transaction by the gateway's order identifier
func (r *GormTransactionRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*payment.Transaction, error) {
	var tx payment.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "gateway_order_id = ?", gatewayOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindByGatewayPaymentID finds a transaction by the gateway's payment identifier
func (r *GormTransactionRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*payment.Transaction, error) {
	var tx payment.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "gateway_payment_id = ?", gatewayPaymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindActiveByOrderID finds the order's single non-terminal transaction
func (r *GormTransactionRepository) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.Transaction, error) {
	var tx payment.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, []payment.Status{
			payment.StatusCreated,
			payment.StatusPending,
			payment.StatusAuthorized,
			payment.StatusCaptured,
		}).
		Order("created_at DESC").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// Save saves a transaction
func (r *GormTransactionRepository) Save(ctx context.Context, tx *payment.Transaction) error {
	return r.db.WithContext(ctx).Save(tx).Error
}

// SaveWithLock saves the transaction only if the stored version matches
// expectedVersion. Verify and webhook paths both funnel through this so
// the loser of a race observes the conflict instead of overwriting.
func (r *GormTransactionRepository) SaveWithLock(ctx context.Context, tx *payment.Transaction, expectedVersion int) error {
	tx.Version = expectedVersion + 1
	result := r.db.WithContext(ctx).
		Model(tx).
		Where("id = ? AND version = ?", tx.ID, expectedVersion).
		Updates(map[string]interface{}{
			"gateway_payment_id":  tx.GatewayPaymentID,
			"signature":           tx.Signature,
			"status":              tx.Status,
			"method":              tx.Method,
			"failure_reason":      tx.FailureReason,
			"refund_id":           tx.Refund.RefundID,
			"refund_amount":       tx.Refund.RefundAmount,
			"refund_reason":       tx.Refund.RefundReason,
			"refunded_at":         tx.Refund.RefundedAt,
			"refunded_by":         tx.Refund.RefundedBy,
			"captured_at":         tx.CapturedAt,
			"raw_webhook_payload": tx.RawWebhookPayload,
			"version":             tx.Version,
			"updated_at":          tx.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Transaction was modified by another process")
	}
	return nil
}

// Delete deletes a transaction
func (r *GormTransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&payment.Transaction{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts all transactions
func (r *GormTransactionRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&payment.Transaction{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

var _ payment.Repository = (*GormTransactionRepository)(nil)
