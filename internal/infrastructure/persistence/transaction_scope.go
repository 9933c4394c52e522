package persistence

import (
	"context"

	appfinance "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/domain/finance"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple ledger repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories hands out repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// InvoiceRepo returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) InvoiceRepo() finance.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// WalletRepo returns the wallet account repository scoped to the current transaction.
func (r *gormTransactionalRepositories) WalletRepo() finance.WalletAccountRepository {
	return NewGormWalletAccountRepository(r.tx)
}

// WithdrawalRepo returns the withdrawal request repository scoped to the current transaction.
func (r *gormTransactionalRepositories) WithdrawalRepo() finance.WithdrawalRequestRepository {
	return NewGormWithdrawalRequestRepository(r.tx)
}

var (
	_ appfinance.TransactionScope          = (*GormTransactionScope)(nil)
	_ appfinance.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
