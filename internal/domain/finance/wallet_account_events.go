package finance

import (
	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Event type names for the wallet account aggregate
const (
	EventTypeWalletCredited         = "WalletCredited"
	EventTypeWalletDebited          = "WalletDebited"
	EventTypeWalletLockStateChanged = "WalletLockStateChanged"

	aggregateTypeWalletAccount = "WalletAccount"
)

// WalletMovementEvent is raised for every credit or debit
type WalletMovementEvent struct {
	shared.BaseDomainEvent
	AccountID     uuid.UUID             `json:"account_id"`
	Owner         Owner                 `json:"owner"`
	Currency      valueobject.Currency  `json:"currency"`
	TransactionID uuid.UUID             `json:"transaction_id"`
	Type          WalletTransactionType `json:"type"`
	Status        TransactionStatus     `json:"status"`
	Amount        decimal.Decimal       `json:"amount"`
	Reference     string                `json:"reference"`
	BalanceAfter  decimal.Decimal       `json:"balance_after"`
}

func newWalletMovementEvent(eventType string, w *WalletAccount, tx *WalletTransaction) *WalletMovementEvent {
	return &WalletMovementEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, aggregateTypeWalletAccount, w.ID),
		AccountID:       w.ID,
		Owner:           w.Owner,
		Currency:        w.Currency,
		TransactionID:   tx.ID,
		Type:            tx.Type,
		Status:          tx.Status,
		Amount:          tx.Amount,
		Reference:       tx.Reference,
		BalanceAfter:    w.Balance(),
	}
}

// NewWalletCreditedEvent creates the event for a credit
func NewWalletCreditedEvent(w *WalletAccount, tx *WalletTransaction) *WalletMovementEvent {
	return newWalletMovementEvent(EventTypeWalletCredited, w, tx)
}

// NewWalletDebitedEvent creates the event for a debit
func NewWalletDebitedEvent(w *WalletAccount, tx *WalletTransaction) *WalletMovementEvent {
	return newWalletMovementEvent(EventTypeWalletDebited, w, tx)
}

// WalletLockStateChangedEvent is raised when an account is locked or unlocked
type WalletLockStateChangedEvent struct {
	shared.BaseDomainEvent
	AccountID uuid.UUID `json:"account_id"`
	Owner     Owner     `json:"owner"`
	IsLocked  bool      `json:"is_locked"`
	Reason    string    `json:"reason,omitempty"`
}

// EventType returns the event type name
func (e *WalletLockStateChangedEvent) EventType() string {
	return EventTypeWalletLockStateChanged
}

// NewWalletLockStateChangedEvent creates a new WalletLockStateChangedEvent
func NewWalletLockStateChangedEvent(w *WalletAccount) *WalletLockStateChangedEvent {
	return &WalletLockStateChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeWalletLockStateChanged, aggregateTypeWalletAccount, w.ID),
		AccountID:       w.ID,
		Owner:           w.Owner,
		IsLocked:        w.IsLocked,
		Reason:          w.LockReason,
	}
}
