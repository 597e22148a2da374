package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toybox/backend/internal/domain/inventory"
	"github.com/toybox/backend/internal/domain/shared"
)

func seedReservation(t *testing.T, repo *GormReservationRepository, orderID uuid.UUID, ttl time.Duration) *inventory.Reservation {
	t.Helper()

	res, err := inventory.NewReservation(uuid.New(), orderID, uuid.New(), 2, ttl)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), res))
	return res
}

func TestGormReservationRepository_FindActiveByOrderID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormReservationRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	seedReservation(t, repo, orderID, time.Hour)
	cancelled := seedReservation(t, repo, orderID, time.Hour)
	require.NoError(t, cancelled.Cancel())
	require.NoError(t, repo.Save(ctx, cancelled))
	seedReservation(t, repo, uuid.New(), time.Hour)

	active, err := repo.FindActiveByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, inventory.ReservationActive, active[0].Status)
}

func TestGormReservationRepository_FindExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormReservationRepository(db)
	ctx := context.Background()

	expired1 := seedReservation(t, repo, uuid.New(), time.Hour)
	expired2 := seedReservation(t, repo, uuid.New(), 2*time.Hour)
	fresh := seedReservation(t, repo, uuid.New(), 48*time.Hour)

	// A cancelled reservation past its expiry must not be swept
	gone := seedReservation(t, repo, uuid.New(), time.Hour)
	require.NoError(t, gone.Cancel())
	require.NoError(t, repo.Save(ctx, gone))

	asOf := time.Now().Add(24 * time.Hour)

	found, err := repo.FindExpired(ctx, asOf, 0)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(found))
	for _, r := range found {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{expired1.ID, expired2.ID}, ids)
	assert.NotContains(t, ids, fresh.ID)

	limited, err := repo.FindExpired(ctx, asOf, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, expired1.ID, limited[0].ID, "oldest expiry first")
}

func TestGormReservationRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormReservationRepository(db)
	ctx := context.Background()

	res := seedReservation(t, repo, uuid.New(), time.Hour)
	expected := res.Version

	require.NoError(t, res.Expire())
	require.NoError(t, repo.SaveWithLock(ctx, res, expected))

	reloaded, err := repo.FindByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationExpired, reloaded.Status)
	assert.NotNil(t, reloaded.ExpiredAt)

	// Second sweep sees a stale version and backs off
	err = repo.SaveWithLock(ctx, res, expected)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "OPTIMISTIC_LOCK_FAILED", domainErr.Code)
}
