package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

// GormAlertRepository implements AlertRepository using GORM
type GormAlertRepository struct {
	db *gorm.DB
}

// NewGormAlertRepository creates a new GormAlertRepository
func NewGormAlertRepository(db *gorm.DB) *GormAlertRepository {
	return &GormAlertRepository{db: db}
}

// FindByID finds an alert by its ID
func (r *GormAlertRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Alert, error) {
	var alert inventory.Alert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// FindAll finds all alerts matching the filter
func (r *GormAlertRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Alert, error) {
	var alerts []inventory.Alert
	query := applyFilter(r.db.WithContext(ctx).Model(&inventory.Alert{}), filter)
	if err := query.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// FindActiveByToyID finds the active alerts for one toy
func (r *GormAlertRepository) FindActiveByToyID(ctx context.Context, toyID uuid.UUID) ([]inventory.Alert, error) {
	var alerts []inventory.Alert
	if err := r.db.WithContext(ctx).
		Where("toy_id = ? AND is_active = ?", toyID, true).
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// FindActive returns active alerts across all toys
func (r *GormAlertRepository) FindActive(ctx context.Context, filter shared.Filter) (shared.Paginated[*inventory.Alert], error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&inventory.Alert{}).
		Where("is_active = ?", true).Count(&total).Error; err != nil {
		return shared.Paginated[*inventory.Alert]{}, err
	}

	var alerts []*inventory.Alert
	query := applyFilter(r.db.WithContext(ctx).Model(&inventory.Alert{}).Where("is_active = ?", true), filter)
	if err := query.Find(&alerts).Error; err != nil {
		return shared.Paginated[*inventory.Alert]{}, err
	}
	return shared.NewPaginated(alerts, total, filter.Page, filter.PageSize), nil
}

// Save saves an alert
func (r *GormAlertRepository) Save(ctx context.Context, alert *inventory.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

// Delete deletes an alert
func (r *GormAlertRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&inventory.Alert{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts all alerts
func (r *GormAlertRepository) Count(ctx context.Context, _ shared.Filter) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&inventory.Alert{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

var _ inventory.AlertRepository = (*GormAlertRepository)(nil)
