package inventory

import (
	"github.com/toybox/backend/internal/domain/shared"
)

// DefaultLowStockThreshold is used when a toy has no explicit threshold
const DefaultLowStockThreshold = 5

// Toy is the stocked-item aggregate. AvailableQuantity is a materialized
// view of the ledger and is only written inside the same transaction as
// the ledger entry that justifies it.
type Toy struct {
	shared.BaseAggregateRoot
	Name              string `gorm:"type:varchar(255);not null"`
	SKU               string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Category          string `gorm:"type:varchar(100);index"`
	Points            int    `gorm:"not null;default:1"`
	AvailableQuantity int    `gorm:"not null;default:0"`
	LowStockThreshold int    `gorm:"not null;default:5"`
	IsReturnable      bool   `gorm:"not null;default:true"`
	IsActive          bool   `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (Toy) TableName() string {
	return "toys"
}

// NewToy creates a new toy with zero stock
func NewToy(name, sku, category string, points int) (*Toy, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Toy name cannot be empty")
	}
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Toy SKU cannot be empty")
	}
	if points <= 0 {
		points = 1
	}
	return &Toy{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		SKU:               sku,
		Category:          category,
		Points:            points,
		LowStockThreshold: DefaultLowStockThreshold,
		IsReturnable:      true,
		IsActive:          true,
	}, nil
}

// Threshold returns the effective low-stock threshold
func (t *Toy) Threshold() int {
	if t.LowStockThreshold <= 0 {
		return DefaultLowStockThreshold
	}
	return t.LowStockThreshold
}

// IsOutOfStock returns true when no quantity is available
func (t *Toy) IsOutOfStock() bool {
	return t.AvailableQuantity == 0
}

// IsLowStock returns true when quantity is positive but at or below the threshold
func (t *Toy) IsLowStock() bool {
	return t.AvailableQuantity > 0 && t.AvailableQuantity <= t.Threshold()
}
