package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/toybox/backend/internal/domain/shared"
)

// ChangeReason classifies one quantity change in the stock ledger
type ChangeReason string

const (
	ReasonAdminAdd         ChangeReason = "admin_add"
	ReasonAdminRemove      ChangeReason = "admin_remove"
	ReasonAdminUpdate      ChangeReason = "admin_update"
	ReasonOrderReserve     ChangeReason = "order_reserve"
	ReasonOrderRelease     ChangeReason = "order_release"
	ReasonOrderDelivered   ChangeReason = "order_delivered"
	ReasonReturnReceived   ChangeReason = "return_received"
	ReasonReturnProcessed  ChangeReason = "return_processed"
	ReasonShipmentReturn   ChangeReason = "shipment_return"
	ReasonQualityCheckPass ChangeReason = "quality_check_pass"
	ReasonQualityCheckFail ChangeReason = "quality_check_fail"
	ReasonDamageReport     ChangeReason = "damage_report"
	ReasonLostItem         ChangeReason = "lost_item"
	ReasonSystemCorrection ChangeReason = "system_correction"
)

var allReasons = map[ChangeReason]struct{}{
	ReasonAdminAdd:         {},
	ReasonAdminRemove:      {},
	ReasonAdminUpdate:      {},
	ReasonOrderReserve:     {},
	ReasonOrderRelease:     {},
	ReasonOrderDelivered:   {},
	ReasonReturnReceived:   {},
	ReasonReturnProcessed:  {},
	ReasonShipmentReturn:   {},
	ReasonQualityCheckPass: {},
	ReasonQualityCheckFail: {},
	ReasonDamageReport:     {},
	ReasonLostItem:         {},
	ReasonSystemCorrection: {},
}

// IsValid checks if the reason is a known change reason
func (r ChangeReason) IsValid() bool {
	_, ok := allReasons[r]
	return ok
}

// String returns the string representation of the reason
func (r ChangeReason) String() string {
	return string(r)
}

// ChangeContext carries the optional actor and reference data for a ledger entry
type ChangeContext struct {
	OrderID *uuid.UUID
	UserID  *uuid.UUID
	AdminID *uuid.UUID
	Notes   string
	BatchID string
}

// LedgerEntry is one immutable record of a quantity change.
// Entries are append-only: never updated, never deleted.
type LedgerEntry struct {
	shared.BaseEntity
	ToyID            uuid.UUID    `gorm:"type:uuid;not null;index:idx_ledger_toy_created"`
	Delta            int          `gorm:"not null"`
	PreviousQuantity int          `gorm:"not null"`
	NewQuantity      int          `gorm:"not null"`
	Reason           ChangeReason `gorm:"type:varchar(30);not null;index"`
	OrderID          *uuid.UUID   `gorm:"type:uuid;index"`
	UserID           *uuid.UUID   `gorm:"type:uuid"`
	AdminID          *uuid.UUID   `gorm:"type:uuid"`
	Notes            string       `gorm:"type:varchar(500)"`
	BatchID          string       `gorm:"type:varchar(64);index"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "inventory_ledger"
}

// NewLedgerEntry records one quantity change. The resulting quantity is
// clamped to zero; callers that need stricter semantics must pre-check.
func NewLedgerEntry(toyID uuid.UUID, previous, delta int, reason ChangeReason, cctx ChangeContext) (*LedgerEntry, error) {
	if toyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TOY", "Toy ID cannot be empty")
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_REASON", "Unknown inventory change reason: "+string(reason))
	}

	newQty := previous + delta
	if newQty < 0 {
		newQty = 0
	}

	return &LedgerEntry{
		BaseEntity:       shared.NewBaseEntity(),
		ToyID:            toyID,
		Delta:            delta,
		PreviousQuantity: previous,
		NewQuantity:      newQty,
		Reason:           reason,
		OrderID:          cctx.OrderID,
		UserID:           cctx.UserID,
		AdminID:          cctx.AdminID,
		Notes:            cctx.Notes,
		BatchID:          cctx.BatchID,
	}, nil
}

// WasClamped reports whether the raw result of previous+delta was negative
func (e *LedgerEntry) WasClamped() bool {
	return e.PreviousQuantity+e.Delta < 0
}

// AppliedAt returns when the change was recorded
func (e *LedgerEntry) AppliedAt() time.Time {
	return e.CreatedAt
}
