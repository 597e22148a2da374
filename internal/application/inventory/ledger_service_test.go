package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

func TestLogChange(t *testing.T) {
	env := newTestEnv()
	svc := NewLedgerService(env.scope, zap.NewNop())
	toy := env.addToy("Blocks", 20)

	entry, err := svc.LogChange(context.Background(), toy.ID, -3, inventory.ReasonOrderReserve, inventory.ChangeContext{})
	require.NoError(t, err)

	assert.Equal(t, 20, entry.PreviousQuantity)
	assert.Equal(t, 17, entry.NewQuantity)

	stored, err := env.toys.FindByID(context.Background(), toy.ID)
	require.NoError(t, err)
	assert.Equal(t, 17, stored.AvailableQuantity)
	assert.Equal(t, 2, stored.Version, "quantity write must bump the optimistic-lock version")
	assert.Len(t, env.ledger.entries, 1)
}

func TestLogChange_ClampsToZero(t *testing.T) {
	env := newTestEnv()
	svc := NewLedgerService(env.scope, zap.NewNop())
	toy := env.addToy("Blocks", 2)

	entry, err := svc.LogChange(context.Background(), toy.ID, -5, inventory.ReasonSystemCorrection, inventory.ChangeContext{})
	require.NoError(t, err)
	assert.Equal(t, 0, entry.NewQuantity)

	stored, _ := env.toys.FindByID(context.Background(), toy.ID)
	assert.Equal(t, 0, stored.AvailableQuantity)
}

func TestLogChange_UnknownToy(t *testing.T) {
	env := newTestEnv()
	svc := NewLedgerService(env.scope, zap.NewNop())

	_, err := svc.LogChange(context.Background(), uuid.New(), 1, inventory.ReasonAdminAdd, inventory.ChangeContext{})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStockAlerts_Derivation(t *testing.T) {
	env := newTestEnv()
	svc := NewLedgerService(env.scope, zap.NewNop())
	toy := env.addToy("Blocks", 10)
	ctx := context.Background()

	activeAlerts := func() []inventory.Alert {
		alerts, err := env.alerts.FindActiveByToyID(ctx, toy.ID)
		require.NoError(t, err)
		return alerts
	}

	// 10 -> 4: low stock
	_, err := svc.LogChange(ctx, toy.ID, -6, inventory.ReasonOrderReserve, inventory.ChangeContext{})
	require.NoError(t, err)
	alerts := activeAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, inventory.AlertTypeLowStock, alerts[0].Type)
	assert.Equal(t, inventory.AlertLevelWarning, alerts[0].Level)

	// 4 -> 0: out of stock supersedes low stock
	_, err = svc.LogChange(ctx, toy.ID, -4, inventory.ReasonOrderReserve, inventory.ChangeContext{})
	require.NoError(t, err)
	alerts = activeAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, inventory.AlertTypeOutOfStock, alerts[0].Type)
	assert.Equal(t, inventory.AlertLevelCritical, alerts[0].Level)

	// 0 -> 12: alert resolved
	_, err = svc.LogChange(ctx, toy.ID, 12, inventory.ReasonAdminAdd, inventory.ChangeContext{})
	require.NoError(t, err)
	assert.Empty(t, activeAlerts())

	// resolved alerts are kept, deactivated
	all, err := env.alerts.FindAll(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, a := range all {
		assert.False(t, a.IsActive)
		assert.NotNil(t, a.ResolvedAt)
	}
}

func TestStockAlerts_Idempotent(t *testing.T) {
	env := newTestEnv()
	svc := NewLedgerService(env.scope, zap.NewNop())
	toy := env.addToy("Blocks", 3)
	ctx := context.Background()

	require.NoError(t, svc.CheckStockAlerts(ctx, toy.ID))
	require.NoError(t, svc.CheckStockAlerts(ctx, toy.ID))

	alerts, err := env.alerts.FindActiveByToyID(ctx, toy.ID)
	require.NoError(t, err)
	assert.Len(t, alerts, 1, "repeated evaluation must not duplicate alerts")
}

func TestAdjustStock(t *testing.T) {
	env := newTestEnv()
	svc := NewLedgerService(env.scope, zap.NewNop())
	toy := env.addToy("Blocks", 10)
	adminID := uuid.New()
	ctx := context.Background()

	entry, err := svc.AdjustStock(ctx, toy.ID, 5, adminID, "restock shipment")
	require.NoError(t, err)
	assert.Equal(t, inventory.ReasonAdminAdd, entry.Reason)
	assert.Equal(t, &adminID, entry.AdminID)
	assert.Equal(t, "restock shipment", entry.Notes)

	entry, err = svc.AdjustStock(ctx, toy.ID, -2, adminID, "damaged on shelf")
	require.NoError(t, err)
	assert.Equal(t, inventory.ReasonAdminRemove, entry.Reason)

	_, err = svc.AdjustStock(ctx, toy.ID, 0, adminID, "")
	assert.Error(t, err)
}

func TestGetToyHistory(t *testing.T) {
	env := newTestEnv()
	svc := NewLedgerService(env.scope, zap.NewNop())
	toy := env.addToy("Blocks", 100)
	other := env.addToy("Puzzle", 50)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.LogChange(ctx, toy.ID, -1, inventory.ReasonOrderReserve, inventory.ChangeContext{})
		require.NoError(t, err)
	}
	_, err := svc.LogChange(ctx, other.ID, -1, inventory.ReasonOrderReserve, inventory.ChangeContext{})
	require.NoError(t, err)

	filter := shared.DefaultFilter()
	filter.PageSize = 2
	page, err := svc.GetToyHistory(ctx, toy.ID, filter)
	require.NoError(t, err)

	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)
	for _, e := range page.Items {
		assert.Equal(t, toy.ID, e.ToyID)
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	env := newTestEnv()
	svc := NewLedgerService(env.scope, zap.NewNop())
	toy := env.addToy("Blocks", 0)
	ctx := context.Background()

	require.NoError(t, svc.CheckStockAlerts(ctx, toy.ID))
	alerts, err := env.alerts.FindActiveByToyID(ctx, toy.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	adminID := uuid.New()
	require.NoError(t, svc.AcknowledgeAlert(ctx, alerts[0].ID, adminID))

	stored, err := env.alerts.FindByID(ctx, alerts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, &adminID, stored.AcknowledgedBy)
	assert.True(t, stored.IsActive)
}
