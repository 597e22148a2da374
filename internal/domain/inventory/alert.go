package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/toybox/backend/internal/domain/shared"
)

// AlertType classifies a stock alert
type AlertType string

const (
	AlertTypeLowStock     AlertType = "low_stock"
	AlertTypeOutOfStock   AlertType = "out_of_stock"
	AlertTypeHighDemand   AlertType = "high_demand"
	AlertTypeQualityIssue AlertType = "quality_issue"
)

// AlertLevel is the severity of an alert
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert is a derived notification about an item's stock level.
// At most one active alert exists per toy; superseded alerts are
// deactivated, never deleted.
type Alert struct {
	shared.BaseEntity
	ToyID          uuid.UUID  `gorm:"type:uuid;not null;index:idx_alerts_toy_active"`
	Type           AlertType  `gorm:"type:varchar(30);not null"`
	Level          AlertLevel `gorm:"type:varchar(10);not null"`
	Threshold      int        `gorm:"not null"`
	Quantity       int        `gorm:"not null"`
	IsActive       bool       `gorm:"not null;default:true;index:idx_alerts_toy_active"`
	AcknowledgedBy *uuid.UUID `gorm:"type:uuid"`
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

// TableName returns the table name for GORM
func (Alert) TableName() string {
	return "inventory_alerts"
}

// NewAlert creates an active alert for a toy
func NewAlert(toyID uuid.UUID, alertType AlertType, level AlertLevel, threshold, quantity int) *Alert {
	return &Alert{
		BaseEntity: shared.NewBaseEntity(),
		ToyID:      toyID,
		Type:       alertType,
		Level:      level,
		Threshold:  threshold,
		Quantity:   quantity,
		IsActive:   true,
	}
}

// Acknowledge records that an admin has seen the alert. The alert stays active.
func (a *Alert) Acknowledge(adminID uuid.UUID) error {
	if !a.IsActive {
		return shared.NewDomainError("ALERT_NOT_ACTIVE", "Cannot acknowledge an inactive alert")
	}
	now := time.Now()
	a.AcknowledgedBy = &adminID
	a.AcknowledgedAt = &now
	a.UpdatedAt = now
	return nil
}

// Resolve deactivates the alert with a resolution timestamp
func (a *Alert) Resolve() {
	if !a.IsActive {
		return
	}
	now := time.Now()
	a.IsActive = false
	a.ResolvedAt = &now
	a.UpdatedAt = now
}
