package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

// GormLedgerRepository implements the append-only LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append inserts one immutable ledger entry
func (r *GormLedgerRepository) Append(ctx context.Context, entry *inventory.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByToyID returns a toy's ledger entries newest-first
func (r *GormLedgerRepository) FindByToyID(ctx context.Context, toyID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.LedgerEntry], error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&inventory.LedgerEntry{}).
		Where("toy_id = ?", toyID).Count(&total).Error; err != nil {
		return shared.Paginated[*inventory.LedgerEntry]{}, err
	}

	var entries []*inventory.LedgerEntry
	query := r.db.WithContext(ctx).
		Where("toy_id = ?", toyID).
		Order("created_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	if err := query.Find(&entries).Error; err != nil {
		return shared.Paginated[*inventory.LedgerEntry]{}, err
	}
	return shared.NewPaginated(entries, total, filter.Page, filter.PageSize), nil
}

// FindByOrderID returns every ledger entry linked to an order
func (r *GormLedgerRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindByBatchID returns every ledger entry in a batch
func (r *GormLedgerRepository) FindByBatchID(ctx context.Context, batchID string) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

var _ inventory.LedgerRepository = (*GormLedgerRepository)(nil)
