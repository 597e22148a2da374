package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	invapp "github.com/toybox/backend/internal/application/inventory"
	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

func TestGormTransactionScope_ReserveItemsCommits(t *testing.T) {
	db := setupTestDB(t)
	toys := NewGormToyRepository(db)
	svc := invapp.NewReservationService(NewGormTransactionScope(db), 24*time.Hour, zap.NewNop())
	ctx := context.Background()

	toy := seedToy(t, toys, "Wooden Train", "TOY-SCOPE-01", 10)
	orderID := uuid.New()

	created, err := svc.ReserveItems(ctx, orderID, uuid.New(), []invapp.ReserveItemInput{
		{ToyID: toy.ID, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	reloaded, err := toys.FindByID(ctx, toy.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.AvailableQuantity)

	entries, err := NewGormLedgerRepository(db).FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, inventory.ReasonOrderReserve, entries[0].Reason)
	assert.Equal(t, -3, entries[0].Delta)
	assert.Equal(t, 7, entries[0].NewQuantity)

	active, err := NewGormReservationRepository(db).FindActiveByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestGormTransactionScope_ReserveItemsRollsBack(t *testing.T) {
	db := setupTestDB(t)
	toys := NewGormToyRepository(db)
	svc := invapp.NewReservationService(NewGormTransactionScope(db), 24*time.Hour, zap.NewNop())
	ctx := context.Background()

	plentiful := seedToy(t, toys, "Plentiful", "TOY-SCOPE-02", 10)
	scarce := seedToy(t, toys, "Scarce", "TOY-SCOPE-03", 1)
	orderID := uuid.New()

	// Second line item fails, so the hold taken for the first must roll back
	_, err := svc.ReserveItems(ctx, orderID, uuid.New(), []invapp.ReserveItemInput{
		{ToyID: plentiful.ID, Quantity: 3},
		{ToyID: scarce.ID, Quantity: 3},
	})
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", domainErr.Code)

	reloaded, err := toys.FindByID(ctx, plentiful.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.AvailableQuantity, "partial hold must not survive the rollback")

	entries, err := NewGormLedgerRepository(db).FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	active, err := NewGormReservationRepository(db).FindActiveByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Empty(t, active)
}
