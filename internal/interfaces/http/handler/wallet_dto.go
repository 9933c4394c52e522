package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// WalletTopUpRequest is the body of POST /wallets/top-ups
type WalletTopUpRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"decimal_gt0" swaggertype:"string" example:"500000"`
	Currency    string          `json:"currency" binding:"omitempty,currency" example:"IRR"`
	Description string          `json:"description" binding:"max=500"`
}

// LockWalletRequest is the body of POST /wallets/:id/lock
type LockWalletRequest struct {
	Reason string `json:"reason" binding:"required,max=500" example:"Chargeback under review"`
}

// WalletQuery holds the query parameters of GET /wallets/:ownerKind/:ownerId
type WalletQuery struct {
	Currency string `form:"currency" binding:"omitempty,currency"`
	// Transactions limits how many of the most recent movements are returned
	Transactions int `form:"transactions" binding:"omitempty,min=0,max=200"`
}

const defaultWalletTransactions = 20

// WalletResponse is a wallet account with its balance
//
//	@Description	Wallet account, balance and most recent movements
type WalletResponse struct {
	ID           uuid.UUID                   `json:"id"`
	Owner        finance.Owner               `json:"owner"`
	Currency     string                      `json:"currency" example:"IRR"`
	Balance      decimal.Decimal             `json:"balance" swaggertype:"string"`
	IsLocked     bool                        `json:"is_locked"`
	LockReason   string                      `json:"lock_reason,omitempty"`
	Transactions []finance.WalletTransaction `json:"transactions"`
	Version      int                         `json:"version"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// ToWalletResponse maps a wallet account to its response, keeping the
// newest limit movements newest first. A zero limit omits them.
func ToWalletResponse(w *finance.WalletAccount, limit int) WalletResponse {
	txs := make([]finance.WalletTransaction, 0, min(limit, len(w.Transactions)))
	for i := len(w.Transactions) - 1; i >= 0 && len(txs) < limit; i-- {
		txs = append(txs, w.Transactions[i])
	}
	return WalletResponse{
		ID:           w.ID,
		Owner:        w.Owner,
		Currency:     string(w.Currency),
		Balance:      w.Balance(),
		IsLocked:     w.IsLocked,
		LockReason:   w.LockReason,
		Transactions: txs,
		Version:      w.Version,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
}

// currencyOf parses a validated currency code; empty selects the default
// currency downstream
func currencyOf(code string) valueobject.Currency {
	c, err := valueobject.ParseCurrency(code)
	if err != nil {
		return ""
	}
	return c
}
