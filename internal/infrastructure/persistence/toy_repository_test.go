package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/order"
	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/domain/shared"
)

// setupTestDB opens an in-memory SQLite database with all tables migrated
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&order.Order{},
		&order.Item{},
		&order.StatusChange{},
		&inventory.Toy{},
		&inventory.LedgerEntry{},
		&inventory.Alert{},
		&inventory.Reservation{},
		&payment.Transaction{},
	)
	require.NoError(t, err)

	return db
}

func seedToy(t *testing.T, repo *GormToyRepository, name, sku string, quantity int) *inventory.Toy {
	t.Helper()

	toy, err := inventory.NewToy(name, sku, "vehicles", 2)
	require.NoError(t, err)
	toy.AvailableQuantity = quantity

	require.NoError(t, repo.Save(context.Background(), toy))
	return toy
}

func TestGormToyRepository_FindByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormToyRepository(db)
	ctx := context.Background()

	t.Run("finds saved toy", func(t *testing.T) {
		toy := seedToy(t, repo, "Wooden Train", "TOY-TRAIN-01", 12)

		found, err := repo.FindByID(ctx, toy.ID)
		require.NoError(t, err)
		assert.Equal(t, toy.ID, found.ID)
		assert.Equal(t, "TOY-TRAIN-01", found.SKU)
		assert.Equal(t, 12, found.AvailableQuantity)
	})

	t.Run("returns ErrNotFound for unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestGormToyRepository_FindBySKU(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormToyRepository(db)
	ctx := context.Background()

	seedToy(t, repo, "Puzzle Cube", "TOY-CUBE-01", 8)

	found, err := repo.FindBySKU(ctx, "TOY-CUBE-01")
	require.NoError(t, err)
	assert.Equal(t, "Puzzle Cube", found.Name)

	_, err = repo.FindBySKU(ctx, "TOY-MISSING")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGormToyRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormToyRepository(db)
	ctx := context.Background()

	t.Run("saves with matching version and bumps it", func(t *testing.T) {
		toy := seedToy(t, repo, "Stacking Rings", "TOY-RINGS-01", 10)
		expected := toy.Version

		toy.AvailableQuantity = 7
		require.NoError(t, repo.SaveWithLock(ctx, toy, expected))

		reloaded, err := repo.FindByID(ctx, toy.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, reloaded.AvailableQuantity)
		assert.Equal(t, expected+1, reloaded.Version)
	})

	t.Run("rejects stale version", func(t *testing.T) {
		toy := seedToy(t, repo, "Toy Drum", "TOY-DRUM-01", 10)

		toy.AvailableQuantity = 9
		err := repo.SaveWithLock(ctx, toy, toy.Version+5)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "OPTIMISTIC_LOCK_FAILED", domainErr.Code)

		reloaded, err := repo.FindByID(ctx, toy.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, reloaded.AvailableQuantity)
	})
}

func TestGormToyRepository_FindLowStock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormToyRepository(db)
	ctx := context.Background()

	seedToy(t, repo, "Plenty", "TOY-A", 50)
	seedToy(t, repo, "Low", "TOY-B", 3)
	seedToy(t, repo, "Empty", "TOY-C", 0)
	inactive := seedToy(t, repo, "Retired", "TOY-D", 1)
	inactive.IsActive = false
	require.NoError(t, repo.Save(ctx, inactive))

	low, err := repo.FindLowStock(ctx)
	require.NoError(t, err)

	skus := make([]string, 0, len(low))
	for _, toy := range low {
		skus = append(skus, toy.SKU)
	}
	assert.ElementsMatch(t, []string{"TOY-B", "TOY-C"}, skus)
}
