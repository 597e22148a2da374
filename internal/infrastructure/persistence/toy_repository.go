package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

// GormToyRepository implements ToyRepository using GORM
type GormToyRepository struct {
	db *gorm.DB
}

// NewGormToyRepository creates a new GormToyRepository
func NewGormToyRepository(db *gorm.DB) *GormToyRepository {
	return &GormToyRepository{db: db}
}

// FindByID finds a toy by its ID
func (r *GormToyRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Toy, error) {
	var toy inventory.Toy
	if err := r.db.WithContext(ctx).First(&toy, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &toy, nil
}

// FindBySKU finds a toy by its SKU
func (r *GormToyRepository) FindBySKU(ctx context.Context, sku string) (*inventory.Toy, error) {
	var toy inventory.Toy
	if err := r.db.WithContext(ctx).First(&toy, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &toy, nil
}

// FindAll finds all toys matching the filter
func (r *GormToyRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Toy, error) {
	var toys []inventory.Toy
	query := applyFilter(r.db.WithContext(ctx).Model(&inventory.Toy{}), filter)
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", pattern, pattern)
	}
	if err := query.Find(&toys).Error; err != nil {
		return nil, err
	}
	return toys, nil
}

// FindLowStock finds active toys at or below their low-stock threshold
func (r *GormToyRepository) FindLowStock(ctx context.Context) ([]inventory.Toy, error) {
	var toys []inventory.Toy
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND available_quantity <= low_stock_threshold", true).
		Order("available_quantity ASC").
		Find(&toys).Error; err != nil {
		return nil, err
	}
	return toys, nil
}

// Save saves a toy
func (r *GormToyRepository) Save(ctx context.Context, toy *inventory.Toy) error {
	return r.db.WithContext(ctx).Save(toy).Error
}

// SaveWithLock saves the toy only if the stored version matches
// expectedVersion, bumping the version on success
func (r *GormToyRepository) SaveWithLock(ctx context.Context, toy *inventory.Toy, expectedVersion int) error {
	toy.Version = expectedVersion + 1
	result := r.db.WithContext(ctx).
		Model(toy).
		Where("id = ? AND version = ?", toy.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":                toy.Name,
			"category":            toy.Category,
			"points":              toy.Points,
			"available_quantity":  toy.AvailableQuantity,
			"low_stock_threshold": toy.LowStockThreshold,
			"is_returnable":       toy.IsReturnable,
			"is_active":           toy.IsActive,
			"version":             toy.Version,
			"updated_at":          toy.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_FAILED", "Toy was modified by another transaction")
	}
	return nil
}

// Delete deletes a toy
func (r *GormToyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&inventory.Toy{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts toys matching the filter
func (r *GormToyRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&inventory.Toy{})
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", pattern, pattern)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

var _ inventory.ToyRepository = (*GormToyRepository)(nil)
