package persistence

import (
	"context"

	"gorm.io/gorm"

	invapp "github.com/toybox/backend/internal/application/inventory"
	"github.com/toybox/backend/internal/domain/inventory"
)

// GormTransactionScope runs inventory operations inside a real database
// transaction. The ledger append, the toy quantity update and any alert
// changes either all commit or all roll back.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction. If the
// function returns an error the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos invapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) ToyRepo() inventory.ToyRepository {
	return NewGormToyRepository(r.tx)
}

func (r *gormTransactionalRepositories) LedgerRepo() inventory.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

func (r *gormTransactionalRepositories) AlertRepo() inventory.AlertRepository {
	return NewGormAlertRepository(r.tx)
}

func (r *gormTransactionalRepositories) ReservationRepo() inventory.ReservationRepository {
	return NewGormReservationRepository(r.tx)
}

var _ invapp.TransactionScope = (*GormTransactionScope)(nil)
var _ invapp.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
