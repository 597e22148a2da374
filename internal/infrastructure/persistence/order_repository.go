package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toybox/backend/internal/domain/order"
	"github.com/toybox/backend/internal/domain/shared"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) withAssociations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC")
		})
}

// FindByID finds an order with its items and status history
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var o order.Order
	if err := r.withAssociations(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindByOrderNumber finds an order by its public order number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	var o order.Order
	if err := r.withAssociations(ctx).First(&o, "order_number = ?", orderNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// FindAll finds all orders matching the filter
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	var orders []order.Order
	query := applyFilter(r.db.WithContext(ctx).Model(&order.Order{}).Preload("Items"), filter)
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormOrderRepository) findPaginated(ctx context.Context, where string, arg interface{}, filter shared.Filter) (shared.Paginated[*order.Order], error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&order.Order{}).Where(where, arg).Count(&total).Error; err != nil {
		return shared.Paginated[*order.Order]{}, err
	}

	var orders []*order.Order
	query := applyFilter(r.withAssociations(ctx).Model(&order.Order{}).Where(where, arg), filter)
	if err := query.Find(&orders).Error; err != nil {
		return shared.Paginated[*order.Order]{}, err
	}
	return shared.NewPaginated(orders, total, filter.Page, filter.PageSize), nil
}

// FindByUserID finds a user's orders
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID uuid.UUID, filter shared.Filter) (shared.Paginated[*order.Order], error) {
	return r.findPaginated(ctx, "user_id = ?", userID, filter)
}

// FindByStatus finds orders in a given status
func (r *GormOrderRepository) FindByStatus(ctx context.Context, status order.Status, filter shared.Filter) (shared.Paginated[*order.Order], error) {
	return r.findPaginated(ctx, "status = ?", status, filter)
}

// Save saves an order with its items and status history
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(o).Error
}

// SaveWithLock saves the order only if the stored version matches
// expectedVersion. New history entries are appended in the same call.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, o *order.Order, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o.Version = expectedVersion + 1
		result := tx.Model(o).
			Where("id = ? AND version = ?", o.ID, expectedVersion).
			Updates(map[string]interface{}{
				"status":                 o.Status,
				"payment_method":         o.Payment.Method,
				"payment_status":         o.Payment.Status,
				"paid_amount":            o.Payment.PaidAmount,
				"refunded_amount":        o.Payment.RefundedAmount,
				"paid_at":                o.Payment.PaidAt,
				"payment_completed_at":   o.Milestones.PaymentCompletedAt,
				"preparation_started_at": o.Milestones.PreparationStartedAt,
				"quality_checked_at":     o.Milestones.QualityCheckedAt,
				"packed_at":              o.Milestones.PackedAt,
				"shipped_at":             o.Milestones.ShippedAt,
				"delivered_at":           o.Milestones.DeliveredAt,
				"completed_at":           o.Milestones.CompletedAt,
				"cancelled_at":           o.Milestones.CancelledAt,
				"is_returnable":          o.IsReturnable,
				"return_deadline":        o.ReturnDeadline,
				"return_reason":          o.ReturnReason,
				"version":                o.Version,
				"updated_at":             o.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Order was modified by another transaction")
		}

		for i := range o.StatusHistory {
			entry := &o.StatusHistory[i]
			if err := tx.Where("id = ?", entry.ID).FirstOrCreate(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete deletes an order
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&order.Order{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts orders matching the filter
func (r *GormOrderRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&order.Order{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByStatus returns the number of orders per status
func (r *GormOrderRepository) CountByStatus(ctx context.Context) (map[order.Status]int64, error) {
	type row struct {
		Status order.Status
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&order.Order{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[order.Status]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.Count
	}
	return out, nil
}

var _ order.Repository = (*GormOrderRepository)(nil)
