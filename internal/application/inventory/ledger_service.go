package inventory

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

// LedgerService owns every quantity change to stocked toys. All writes go
// through LogChange so the cached quantity, the ledger and the alert state
// stay consistent; no other code path mutates AvailableQuantity.
type LedgerService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(scope TransactionScope, logger *zap.Logger) *LedgerService {
	return &LedgerService{scope: scope, logger: logger}
}

// LogChange applies a signed quantity delta to a toy as one atomic unit:
// it appends an immutable ledger entry, updates the cached quantity under
// an optimistic lock, and re-evaluates stock alerts. The resulting
// quantity is clamped at zero.
func (s *LedgerService) LogChange(ctx context.Context, toyID uuid.UUID, delta int, reason inventory.ChangeReason, cctx inventory.ChangeContext) (*inventory.LedgerEntry, error) {
	var entry *inventory.LedgerEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		e, err := applyQuantityChange(ctx, repos, s.logger, toyID, delta, reason, cctx)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inventory change recorded",
		zap.String("toy_id", toyID.String()),
		zap.Int("delta", delta),
		zap.Int("new_quantity", entry.NewQuantity),
		zap.String("reason", string(reason)))
	return entry, nil
}

// AdjustStock is the admin entry point for manual corrections. Positive
// deltas use admin_add, negative admin_remove.
func (s *LedgerService) AdjustStock(ctx context.Context, toyID uuid.UUID, delta int, adminID uuid.UUID, notes string) (*inventory.LedgerEntry, error) {
	if delta == 0 {
		return nil, shared.NewDomainError("INVALID_DELTA", "Stock adjustment delta cannot be zero")
	}
	reason := inventory.ReasonAdminAdd
	if delta < 0 {
		reason = inventory.ReasonAdminRemove
	}
	return s.LogChange(ctx, toyID, delta, reason, inventory.ChangeContext{
		AdminID: &adminID,
		Notes:   notes,
	})
}

// CheckStockAlerts re-derives the alert state for a toy from its current
// quantity. Calling it repeatedly with an unchanged quantity is a no-op.
func (s *LedgerService) CheckStockAlerts(ctx context.Context, toyID uuid.UUID) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		toy, err := repos.ToyRepo().FindByID(ctx, toyID)
		if err != nil {
			return err
		}
		return reconcileStockAlerts(ctx, repos, s.logger, toy)
	})
}

// applyQuantityChange performs one read-modify-write of a toy's quantity
// inside the caller's transaction: append the ledger entry, update the
// cached quantity under an optimistic lock, re-derive alerts.
func applyQuantityChange(ctx context.Context, repos TransactionalRepositories, logger *zap.Logger, toyID uuid.UUID, delta int, reason inventory.ChangeReason, cctx inventory.ChangeContext) (*inventory.LedgerEntry, error) {
	toy, err := repos.ToyRepo().FindByID(ctx, toyID)
	if err != nil {
		return nil, err
	}

	e, err := inventory.NewLedgerEntry(toy.ID, toy.AvailableQuantity, delta, reason, cctx)
	if err != nil {
		return nil, err
	}
	if e.WasClamped() {
		// a clamp means a decrement raced past the available quantity;
		// the entry is still recorded so the discrepancy stays auditable
		logger.Warn("inventory change clamped to zero",
			zap.String("toy_id", toy.ID.String()),
			zap.Int("previous", e.PreviousQuantity),
			zap.Int("delta", e.Delta),
			zap.String("reason", string(e.Reason)))
	}

	if err := repos.LedgerRepo().Append(ctx, e); err != nil {
		return nil, err
	}

	expectedVersion := toy.Version
	toy.AvailableQuantity = e.NewQuantity
	if err := repos.ToyRepo().SaveWithLock(ctx, toy, expectedVersion); err != nil {
		return nil, err
	}

	if err := reconcileStockAlerts(ctx, repos, logger, toy); err != nil {
		return nil, err
	}
	return e, nil
}

// reconcileStockAlerts ensures at most one active alert per toy matching
// the 3-state derivation: out_of_stock at zero, low_stock at or below the
// threshold, none above it. Superseded alerts are resolved, not deleted.
func reconcileStockAlerts(ctx context.Context, repos TransactionalRepositories, logger *zap.Logger, toy *inventory.Toy) error {
	active, err := repos.AlertRepo().FindActiveByToyID(ctx, toy.ID)
	if err != nil {
		return err
	}

	var wantType inventory.AlertType
	var wantLevel inventory.AlertLevel
	switch {
	case toy.IsOutOfStock():
		wantType, wantLevel = inventory.AlertTypeOutOfStock, inventory.AlertLevelCritical
	case toy.IsLowStock():
		wantType, wantLevel = inventory.AlertTypeLowStock, inventory.AlertLevelWarning
	}

	satisfied := false
	for i := range active {
		a := &active[i]
		if wantType != "" && a.Type == wantType && !satisfied {
			satisfied = true
			continue
		}
		a.Resolve()
		if err := repos.AlertRepo().Save(ctx, a); err != nil {
			return err
		}
	}

	if wantType != "" && !satisfied {
		alert := inventory.NewAlert(toy.ID, wantType, wantLevel, toy.Threshold(), toy.AvailableQuantity)
		if err := repos.AlertRepo().Save(ctx, alert); err != nil {
			return err
		}
		logger.Warn("stock alert raised",
			zap.String("toy_id", toy.ID.String()),
			zap.String("type", string(wantType)),
			zap.Int("quantity", toy.AvailableQuantity))
	}
	return nil
}

// GetToyHistory returns the toy's ledger entries newest-first
func (s *LedgerService) GetToyHistory(ctx context.Context, toyID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.LedgerEntry], error) {
	var page shared.Paginated[*inventory.LedgerEntry]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.ToyRepo().FindByID(ctx, toyID); err != nil {
			return err
		}
		p, err := repos.LedgerRepo().FindByToyID(ctx, toyID, filter)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}

// AcknowledgeAlert records that an admin has seen an active alert
func (s *LedgerService) AcknowledgeAlert(ctx context.Context, alertID, adminID uuid.UUID) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		alert, err := repos.AlertRepo().FindByID(ctx, alertID)
		if err != nil {
			return err
		}
		if err := alert.Acknowledge(adminID); err != nil {
			return err
		}
		return repos.AlertRepo().Save(ctx, alert)
	})
}

// GetActiveAlerts returns currently active alerts across all toys
func (s *LedgerService) GetActiveAlerts(ctx context.Context, filter shared.Filter) (shared.Paginated[*inventory.Alert], error) {
	var page shared.Paginated[*inventory.Alert]
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		p, err := repos.AlertRepo().FindActive(ctx, filter)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}
