package finance

import (
	"context"

	"github.com/shopledger/backend/internal/domain/finance"
)

// TransactionScope provides transactional access to ledger repositories.
// Every ledger mutation is load, mutate and SaveWithLock inside one Execute call.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within a transaction.
// All repositories returned share the same underlying database transaction.
type TransactionalRepositories interface {
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() finance.InvoiceRepository
	// WalletRepo returns the wallet account repository scoped to the current transaction
	WalletRepo() finance.WalletAccountRepository
	// WithdrawalRepo returns the withdrawal request repository scoped to the current transaction
	WithdrawalRepo() finance.WithdrawalRequestRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	invoiceRepo    finance.InvoiceRepository
	walletRepo     finance.WalletAccountRepository
	withdrawalRepo finance.WithdrawalRequestRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	invoiceRepo finance.InvoiceRepository,
	walletRepo finance.WalletAccountRepository,
	withdrawalRepo finance.WithdrawalRequestRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo:    invoiceRepo,
		walletRepo:     walletRepo,
		withdrawalRepo: withdrawalRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InvoiceRepo returns the invoice repository.
func (s *NoOpTransactionScope) InvoiceRepo() finance.InvoiceRepository {
	return s.invoiceRepo
}

// WalletRepo returns the wallet account repository.
func (s *NoOpTransactionScope) WalletRepo() finance.WalletAccountRepository {
	return s.walletRepo
}

// WithdrawalRepo returns the withdrawal request repository.
func (s *NoOpTransactionScope) WithdrawalRepo() finance.WithdrawalRequestRepository {
	return s.withdrawalRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
