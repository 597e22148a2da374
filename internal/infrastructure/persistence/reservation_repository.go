package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Reservation, error) {
	var res inventory.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// FindAll finds all reservations matching the filter
func (r *GormReservationRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	query := applyFilter(r.db.WithContext(ctx).Model(&inventory.Reservation{}), filter)
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindActiveByOrderID finds an order's active reservations
func (r *GormReservationRepository) FindActiveByOrderID(ctx context.Context, orderID uuid.UUID) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, inventory.ReservationActive).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindExpired finds active reservations whose expiry has passed
func (r *GormReservationRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]inventory.Reservation, error) {
	var out []inventory.Reservation
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", inventory.ReservationActive, asOf).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Save saves a reservation
func (r *GormReservationRepository) Save(ctx context.Context, res *inventory.Reservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

// SaveWithLock saves the reservation only if the stored version matches
// expectedVersion, so two sweeps cannot both release the same row
func (r *GormReservationRepository) SaveWithLock(ctx context.Context, res *inventory.Reservation, expectedVersion int) error {
	res.Version = expectedVersion + 1
	result := r.db.WithContext(ctx).
		Model(res).
		Where("id = ? AND version = ?", res.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":       res.Status,
			"fulfilled_at": res.FulfilledAt,
			"cancelled_at": res.CancelledAt,
			"expired_at":   res.ExpiredAt,
			"version":      res.Version,
			"updated_at":   res.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Reservation was modified by another transaction")
	}
	return nil
}

// Delete deletes a reservation
func (r *GormReservationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&inventory.Reservation{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts all reservations
func (r *GormReservationRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&inventory.Reservation{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)
