package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/domain/shared"
)

func seedTransaction(t *testing.T, repo *GormTransactionRepository, orderID uuid.UUID, gatewayOrderID string) *payment.Transaction {
	t.Helper()

	tx, err := payment.NewTransaction(orderID, uuid.New(), gatewayOrderID, decimal.NewFromInt(398), "INR")
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), tx))
	return tx
}

func TestGormTransactionRepository_FindByGatewayOrderID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTransactionRepository(db)
	ctx := context.Background()

	tx := seedTransaction(t, repo, uuid.New(), "order_mock_abc123")

	found, err := repo.FindByGatewayOrderID(ctx, "order_mock_abc123")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)

	_, err = repo.FindByGatewayOrderID(ctx, "order_mock_missing")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGormTransactionRepository_FindActiveByOrderID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTransactionRepository(db)
	ctx := context.Background()

	orderID := uuid.New()

	t.Run("no transactions yet", func(t *testing.T) {
		_, err := repo.FindActiveByOrderID(ctx, orderID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("failed transaction is not active", func(t *testing.T) {
		failed := seedTransaction(t, repo, orderID, "order_mock_failed01")
		failed.MarkFailed("Card declined")
		require.NoError(t, repo.Save(ctx, failed))

		_, err := repo.FindActiveByOrderID(ctx, orderID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("created retry attempt is active", func(t *testing.T) {
		retry := seedTransaction(t, repo, orderID, "order_mock_retry01")

		found, err := repo.FindActiveByOrderID(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, retry.ID, found.ID)
		assert.Equal(t, payment.StatusCreated, found.Status)
	})
}

func TestGormTransactionRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTransactionRepository(db)
	ctx := context.Background()

	tx := seedTransaction(t, repo, uuid.New(), "order_mock_lock01")
	expected := tx.Version

	require.NoError(t, tx.MarkCaptured("pay_mock_001", "sig", "card"))
	require.NoError(t, repo.SaveWithLock(ctx, tx, expected))

	reloaded, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCaptured, reloaded.Status)
	assert.Equal(t, "pay_mock_001", reloaded.GatewayPaymentID)
	assert.NotNil(t, reloaded.CapturedAt)
	assert.Equal(t, expected+1, reloaded.Version)

	// The loser of a verify/webhook race observes the conflict
	err = repo.SaveWithLock(ctx, tx, expected)
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "OPTIMISTIC_LOCK_FAILED", domainErr.Code)
}
