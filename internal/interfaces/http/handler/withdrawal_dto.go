package handler

import (
	"time"

	"github.com/google/uuid"
	financeapp "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// PayoutDestinationRequest names where a withdrawal is paid to.
// At least one of bank account, card number or IBAN is required.
type PayoutDestinationRequest struct {
	BankAccountNumber string `json:"bank_account_number" binding:"max=34"`
	CardNumber        string `json:"card_number" binding:"omitempty,numeric,min=12,max=19"`
	IBAN              string `json:"iban" binding:"max=34"`
	BankName          string `json:"bank_name" binding:"max=100"`
	AccountHolderName string `json:"account_holder_name" binding:"max=200"`
}

// CreateWithdrawalRequest is the body of POST /withdrawals
type CreateWithdrawalRequest struct {
	Type        string                   `json:"type" binding:"required,oneof=SELLER_REVENUE WALLET" example:"WALLET"`
	Amount      decimal.Decimal          `json:"amount" binding:"decimal_gt0" swaggertype:"string" example:"250000"`
	Currency    string                   `json:"currency" binding:"omitempty,currency" example:"IRR"`
	Destination PayoutDestinationRequest `json:"destination"`
	Description string                   `json:"description" binding:"max=500"`
}

// ToCommand converts the request for the given party
func (r CreateWithdrawalRequest) ToCommand(partyID uuid.UUID) financeapp.CreateWithdrawalRequest {
	return financeapp.CreateWithdrawalRequest{
		Type:     finance.WithdrawalType(r.Type),
		PartyID:  partyID,
		Amount:   r.Amount,
		Currency: currencyOf(r.Currency),
		Destination: finance.PayoutDestination{
			BankAccountNumber: r.Destination.BankAccountNumber,
			CardNumber:        r.Destination.CardNumber,
			IBAN:              r.Destination.IBAN,
			BankName:          r.Destination.BankName,
			AccountHolderName: r.Destination.AccountHolderName,
		},
		Description: r.Description,
	}
}

// WithdrawalDecisionRequest is the body of approve and reject
type WithdrawalDecisionRequest struct {
	Notes string `json:"notes" binding:"max=1000" example:"Verified against seller ledger"`
}

// ListWithdrawalsQuery holds the query parameters of GET /withdrawals
type ListWithdrawalsQuery struct {
	OwnerKind string `form:"owner_kind" binding:"omitempty,oneof=USER SELLER user seller"`
	OwnerID   string `form:"owner_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED PROCESSED"`
	Type      string `form:"type" binding:"omitempty,oneof=SELLER_REVENUE WALLET"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// WithdrawalResponse is a withdrawal request
//
//	@Description	Withdrawal request and its review trail
type WithdrawalResponse struct {
	ID                  uuid.UUID                 `json:"id"`
	Type                string                    `json:"type" example:"WALLET"`
	Owner               finance.Owner             `json:"owner"`
	Amount              decimal.Decimal           `json:"amount" swaggertype:"string"`
	Currency            string                    `json:"currency" example:"IRR"`
	Destination         finance.PayoutDestination `json:"destination"`
	Description         string                    `json:"description,omitempty"`
	Status              string                    `json:"status" example:"PENDING"`
	AdminNotes          string                    `json:"admin_notes,omitempty"`
	ApprovedBy          *uuid.UUID                `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time                `json:"approved_at,omitempty"`
	RejectedBy          *uuid.UUID                `json:"rejected_by,omitempty"`
	RejectedAt          *time.Time                `json:"rejected_at,omitempty"`
	ProcessedBy         *uuid.UUID                `json:"processed_by,omitempty"`
	ProcessedAt         *time.Time                `json:"processed_at,omitempty"`
	WalletTransactionID *uuid.UUID                `json:"wallet_transaction_id,omitempty"`
	InvoiceID           *uuid.UUID                `json:"invoice_id,omitempty"`
	Version             int                       `json:"version"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

// ToWithdrawalResponse maps a withdrawal request to its response
func ToWithdrawalResponse(w *finance.WithdrawalRequest) WithdrawalResponse {
	return WithdrawalResponse{
		ID:                  w.ID,
		Type:                string(w.Type),
		Owner:               w.Owner,
		Amount:              w.Amount,
		Currency:            string(w.Currency),
		Destination:         w.Destination,
		Description:         w.Description,
		Status:              string(w.Status),
		AdminNotes:          w.AdminNotes,
		ApprovedBy:          w.ApprovedBy,
		ApprovedAt:          w.ApprovedAt,
		RejectedBy:          w.RejectedBy,
		RejectedAt:          w.RejectedAt,
		ProcessedBy:         w.ProcessedBy,
		ProcessedAt:         w.ProcessedAt,
		WalletTransactionID: w.WalletTransactionID,
		InvoiceID:           w.InvoiceID,
		Version:             w.Version,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
}

// ProcessWithdrawalResponse is the outcome of processing a withdrawal.
// Deferred payouts complete when the gateway verifies the payout transaction.
type ProcessWithdrawalResponse struct {
	Request             WithdrawalResponse `json:"request"`
	Deferred            bool               `json:"deferred"`
	PayoutInvoiceID     *uuid.UUID         `json:"payout_invoice_id,omitempty"`
	PayoutTrackingCode  string             `json:"payout_tracking_code,omitempty"`
	WalletTransactionID *uuid.UUID         `json:"wallet_transaction_id,omitempty"`
}

// PaymentCallbackRequest is the body the gateway posts to /payments/callback
type PaymentCallbackRequest struct {
	TrackingNumber  string          `json:"tracking_number" binding:"required,max=100" example:"GW20260301120000A1B2C3"`
	TransactionCode string          `json:"transaction_code" binding:"required,max=100" example:"884120019"`
	PaidAmount      decimal.Decimal `json:"paid_amount" swaggertype:"string" example:"150000"`
}
