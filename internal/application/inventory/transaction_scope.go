package inventory

import (
	"context"

	"github.com/toybox/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to inventory repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the inventory repositories
// within one transaction. The toy's cached AvailableQuantity is a
// materialized view of the ledger; both must always be written through the
// same scope so the cache can never drift from the entries that justify it.
type TransactionalRepositories interface {
	// ToyRepo returns the toy repository scoped to the current transaction
	ToyRepo() inventory.ToyRepository
	// LedgerRepo returns the append-only ledger repository scoped to the current transaction
	LedgerRepo() inventory.LedgerRepository
	// AlertRepo returns the stock alert repository scoped to the current transaction
	AlertRepo() inventory.AlertRepository
	// ReservationRepo returns the reservation repository scoped to the current transaction
	ReservationRepo() inventory.ReservationRepository
}

// NoOpTransactionScope runs the function without a real transaction.
// Useful in tests with in-memory repositories.
type NoOpTransactionScope struct {
	toyRepo         inventory.ToyRepository
	ledgerRepo      inventory.LedgerRepository
	alertRepo       inventory.AlertRepository
	reservationRepo inventory.ReservationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories.
func NewNoOpTransactionScope(
	toyRepo inventory.ToyRepository,
	ledgerRepo inventory.LedgerRepository,
	alertRepo inventory.AlertRepository,
	reservationRepo inventory.ReservationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		toyRepo:         toyRepo,
		ledgerRepo:      ledgerRepo,
		alertRepo:       alertRepo,
		reservationRepo: reservationRepo,
	}
}

// Execute runs the function without transactional guarantees.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ToyRepo returns the toy repository.
func (s *NoOpTransactionScope) ToyRepo() inventory.ToyRepository { return s.toyRepo }

// LedgerRepo returns the ledger repository.
func (s *NoOpTransactionScope) LedgerRepo() inventory.LedgerRepository { return s.ledgerRepo }

// AlertRepo returns the alert repository.
func (s *NoOpTransactionScope) AlertRepo() inventory.AlertRepository { return s.alertRepo }

// ReservationRepo returns the reservation repository.
func (s *NoOpTransactionScope) ReservationRepo() inventory.ReservationRepository {
	return s.reservationRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
