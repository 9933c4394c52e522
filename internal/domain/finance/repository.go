package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Status *InvoiceStatus
}

// InvoiceRepository defines the interface for invoice persistence.
// Loaded invoices always include items and transactions.
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its human-readable number
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// FindByTransactionReference finds the invoice owning a payment transaction reference
	FindByTransactionReference(ctx context.Context, reference string) (*Invoice, error)

	// FindByOwner lists invoices of an owner
	FindByOwner(ctx context.Context, owner Owner, filter InvoiceFilter) ([]Invoice, int64, error)

	// ExistsByNumber checks if an invoice number is taken
	ExistsByNumber(ctx context.Context, invoiceNumber string) (bool, error)

	// Create inserts a new invoice with its items and transactions
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check).
	// Returns shared.ErrConcurrencyConflict when the stored version moved on.
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// WalletAccountRepository defines the interface for wallet persistence.
// Loaded accounts always include their transaction log.
type WalletAccountRepository interface {
	// FindByID finds a wallet account by ID
	FindByID(ctx context.Context, id uuid.UUID) (*WalletAccount, error)

	// FindByOwner finds the wallet of an owner in a currency
	FindByOwner(ctx context.Context, owner Owner, currency valueobject.Currency) (*WalletAccount, error)

	// Create inserts a new wallet account. Returns shared.ErrConcurrencyConflict
	// when another process created the (owner, currency) account first.
	Create(ctx context.Context, account *WalletAccount) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, account *WalletAccount) error
}

// WithdrawalRequestFilter defines filtering options for withdrawal queries
type WithdrawalRequestFilter struct {
	shared.Filter
	Status *WithdrawalStatus
	Type   *WithdrawalType
}

// WithdrawalRequestRepository defines the interface for withdrawal request persistence
type WithdrawalRequestRepository interface {
	// FindByID finds a withdrawal request by ID
	FindByID(ctx context.Context, id uuid.UUID) (*WithdrawalRequest, error)

	// FindByIDForUpdate finds a withdrawal request and row-locks it for the current transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*WithdrawalRequest, error)

	// FindByOwner lists the requests of a seller or user
	FindByOwner(ctx context.Context, owner Owner, filter WithdrawalRequestFilter) ([]WithdrawalRequest, int64, error)

	// SumProcessedSellerRevenue totals processed seller-revenue withdrawals of a seller
	SumProcessedSellerRevenue(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error)

	// Create inserts a new withdrawal request
	Create(ctx context.Context, request *WithdrawalRequest) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, request *WithdrawalRequest) error
}
