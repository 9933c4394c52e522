package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// WalletTransactionType is the direction of a wallet movement
type WalletTransactionType string

const (
	WalletTransactionTypeCredit WalletTransactionType = "CREDIT"
	WalletTransactionTypeDebit  WalletTransactionType = "DEBIT"
)

// IsValid checks if the wallet transaction type is valid
func (t WalletTransactionType) IsValid() bool {
	return t == WalletTransactionTypeCredit || t == WalletTransactionTypeDebit
}

// WalletTransaction is one entry of a wallet ledger
type WalletTransaction struct {
	ID                   uuid.UUID             `json:"id"`
	Type                 WalletTransactionType `json:"type"`
	Amount               decimal.Decimal       `json:"amount"` // Always positive, sign comes from Type
	Reference            string                `json:"reference"`
	Description          string                `json:"description,omitempty"`
	Metadata             string                `json:"metadata,omitempty"`
	InvoiceID            *uuid.UUID            `json:"invoice_id,omitempty"`
	PaymentTransactionID *uuid.UUID            `json:"payment_transaction_id,omitempty"`
	Status               TransactionStatus     `json:"status"`
	OccurredAt           time.Time             `json:"occurred_at"`
	CreatedAt            time.Time             `json:"created_at"`
}

// SignedAmount returns the amount with the sign of its direction
func (t *WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Type == WalletTransactionTypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// WalletEntry carries the fields of a credit or debit
type WalletEntry struct {
	Amount               decimal.Decimal
	Currency             valueobject.Currency // Empty means the account currency
	Reference            string
	Description          string
	Metadata             string
	InvoiceID            *uuid.UUID
	PaymentTransactionID *uuid.UUID
	Status               TransactionStatus // Empty means SUCCEEDED
	OccurredAt           time.Time
	// AllowOverdraft lets a debit take the balance below zero
	AllowOverdraft bool
}

// WalletAccount is the per-party, per-currency ledger aggregate root.
// The balance is always folded from the transaction log.
type WalletAccount struct {
	shared.BaseAggregateRoot
	Owner        Owner                `json:"owner"`
	Currency     valueobject.Currency `json:"currency"`
	IsLocked     bool                 `json:"is_locked"`
	LockReason   string               `json:"lock_reason,omitempty"`
	Transactions []WalletTransaction  `json:"transactions"`
}

// NewWalletAccount creates an empty wallet for a user or seller
func NewWalletAccount(owner Owner, currency valueobject.Currency) (*WalletAccount, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if owner.IsPlatform() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Platform cannot own a wallet account")
	}
	if currency == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Currency cannot be empty")
	}
	return &WalletAccount{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Owner:             owner,
		Currency:          currency,
		Transactions:      make([]WalletTransaction, 0),
	}, nil
}

// Balance folds the succeeded transactions; pending and failed entries are ignored
func (w *WalletAccount) Balance() decimal.Decimal {
	balance := decimal.Zero
	for i := range w.Transactions {
		if w.Transactions[i].Status == TransactionStatusSucceeded {
			balance = balance.Add(w.Transactions[i].SignedAmount())
		}
	}
	return balance
}

// GetBalanceMoney returns the balance as Money
func (w *WalletAccount) GetBalanceMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(w.Balance(), w.Currency)
	return m
}

// CanDebit reports whether amount could be debited without overdraft
func (w *WalletAccount) CanDebit(amount decimal.Decimal) bool {
	return !w.IsLocked && w.Balance().GreaterThanOrEqual(amount)
}

// Credit appends a credit entry
func (w *WalletAccount) Credit(entry WalletEntry) (*WalletTransaction, error) {
	if err := w.validateEntry(entry); err != nil {
		return nil, err
	}
	tx := w.appendTransaction(WalletTransactionTypeCredit, entry)
	w.AddDomainEvent(NewWalletCreditedEvent(w, tx))
	return tx, nil
}

// Debit appends a debit entry. A locked account or a debit that would leave a
// negative balance is rejected unless the entry allows an overdraft.
func (w *WalletAccount) Debit(entry WalletEntry) (*WalletTransaction, error) {
	if err := w.validateEntry(entry); err != nil {
		return nil, err
	}
	if w.IsLocked {
		return nil, shared.NewDomainError(shared.CodeAccountLocked, fmt.Sprintf("Wallet account is locked: %s", w.LockReason))
	}
	status := entry.Status
	if status == "" {
		status = TransactionStatusSucceeded
	}
	if status != TransactionStatusFailed && !entry.AllowOverdraft {
		if w.Balance().LessThan(entry.Amount) {
			return nil, shared.NewDomainError(shared.CodeInsufficientBalance,
				fmt.Sprintf("Insufficient balance: available %s, requested %s", w.Balance().StringFixed(valueobject.AmountScale), entry.Amount.StringFixed(valueobject.AmountScale)))
		}
	}
	tx := w.appendTransaction(WalletTransactionTypeDebit, entry)
	w.AddDomainEvent(NewWalletDebitedEvent(w, tx))
	return tx, nil
}

func (w *WalletAccount) validateEntry(entry WalletEntry) error {
	if !entry.Amount.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidAmount, "Wallet transaction amount must be positive")
	}
	if entry.Currency != "" && entry.Currency != w.Currency {
		return shared.NewDomainError(shared.CodeCurrencyMismatch,
			fmt.Sprintf("Transaction currency %s does not match account currency %s", entry.Currency, w.Currency))
	}
	if strings.TrimSpace(entry.Reference) == "" {
		return shared.NewDomainError(shared.CodeValidation, "Wallet transaction reference cannot be empty")
	}
	if entry.Status != "" && !entry.Status.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, "Wallet transaction status is not valid")
	}
	return nil
}

func (w *WalletAccount) appendTransaction(txType WalletTransactionType, entry WalletEntry) *WalletTransaction {
	now := time.Now()
	status := entry.Status
	if status == "" {
		status = TransactionStatusSucceeded
	}
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	w.Transactions = append(w.Transactions, WalletTransaction{
		ID:                   uuid.New(),
		Type:                 txType,
		Amount:               entry.Amount,
		Reference:            strings.TrimSpace(entry.Reference),
		Description:          entry.Description,
		Metadata:             entry.Metadata,
		InvoiceID:            entry.InvoiceID,
		PaymentTransactionID: entry.PaymentTransactionID,
		Status:               status,
		OccurredAt:           occurredAt,
		CreatedAt:            now,
	})
	w.UpdatedAt = now
	return &w.Transactions[len(w.Transactions)-1]
}

// FindSucceededByTag returns the succeeded transaction whose metadata carries tag.
// When invoiceID is given the transaction must also be linked to that invoice.
func (w *WalletAccount) FindSucceededByTag(invoiceID *uuid.UUID, tag string) *WalletTransaction {
	if tag == "" {
		return nil
	}
	for i := range w.Transactions {
		tx := &w.Transactions[i]
		if tx.Status != TransactionStatusSucceeded || !HasTag(tx.Metadata, tag) {
			continue
		}
		if invoiceID != nil && (tx.InvoiceID == nil || *tx.InvoiceID != *invoiceID) {
			continue
		}
		return tx
	}
	return nil
}

// FindTransaction returns the transaction with the given id, or nil
func (w *WalletAccount) FindTransaction(id uuid.UUID) *WalletTransaction {
	for i := range w.Transactions {
		if w.Transactions[i].ID == id {
			return &w.Transactions[i]
		}
	}
	return nil
}

// Lock blocks further debits
func (w *WalletAccount) Lock(reason string) error {
	if w.IsLocked {
		return shared.NewDomainError(shared.CodeInvalidState, "Wallet account is already locked")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError(shared.CodeValidation, "Lock reason is required")
	}
	w.IsLocked = true
	w.LockReason = reason
	w.Touch()
	w.AddDomainEvent(NewWalletLockStateChangedEvent(w))
	return nil
}

// Unlock allows debits again
func (w *WalletAccount) Unlock() error {
	if !w.IsLocked {
		return shared.NewDomainError(shared.CodeInvalidState, "Wallet account is not locked")
	}
	w.IsLocked = false
	w.LockReason = ""
	w.Touch()
	w.AddDomainEvent(NewWalletLockStateChangedEvent(w))
	return nil
}
