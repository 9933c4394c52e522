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

// WithdrawalType selects where the withdrawn value comes from
type WithdrawalType string

const (
	WithdrawalTypeSellerRevenue WithdrawalType = "SELLER_REVENUE" // Seller's accumulated sales revenue
	WithdrawalTypeWallet        WithdrawalType = "WALLET"         // A user's wallet balance
)

// IsValid checks if the withdrawal type is valid
func (t WithdrawalType) IsValid() bool {
	return t == WithdrawalTypeSellerRevenue || t == WithdrawalTypeWallet
}

// OwnerKind returns the kind of party that can request this type
func (t WithdrawalType) OwnerKind() OwnerKind {
	if t == WithdrawalTypeSellerRevenue {
		return OwnerKindSeller
	}
	return OwnerKindUser
}

// WithdrawalStatus represents the status of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved  WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected  WithdrawalStatus = "REJECTED"
	WithdrawalStatusProcessed WithdrawalStatus = "PROCESSED"
)

// IsValid checks if the status is a valid WithdrawalStatus
func (s WithdrawalStatus) IsValid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected, WithdrawalStatusProcessed:
		return true
	}
	return false
}

// IsTerminal returns true once the request can no longer change
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusRejected || s == WithdrawalStatusProcessed
}

// String returns the string representation of WithdrawalStatus
func (s WithdrawalStatus) String() string {
	return string(s)
}

// PayoutDestination is where the money is sent
type PayoutDestination struct {
	BankAccountNumber string `json:"bank_account_number,omitempty"`
	CardNumber        string `json:"card_number,omitempty"`
	IBAN              string `json:"iban,omitempty"`
	BankName          string `json:"bank_name,omitempty"`
	AccountHolderName string `json:"account_holder_name,omitempty"`
}

// Validate requires at least one routing field
func (d PayoutDestination) Validate() error {
	if strings.TrimSpace(d.BankAccountNumber) == "" &&
		strings.TrimSpace(d.CardNumber) == "" &&
		strings.TrimSpace(d.IBAN) == "" {
		return shared.NewDomainError(shared.CodeValidation, "A bank account, card number or IBAN is required")
	}
	return nil
}

// WithdrawalRequest is the approval workflow for moving value out of the platform
type WithdrawalRequest struct {
	shared.BaseAggregateRoot
	Type                WithdrawalType       `json:"type"`
	Owner               Owner                `json:"owner"`
	Amount              decimal.Decimal      `json:"amount"`
	Currency            valueobject.Currency `json:"currency"`
	Destination         PayoutDestination    `json:"destination"`
	Description         string               `json:"description,omitempty"`
	Status              WithdrawalStatus     `json:"status"`
	AdminNotes          string               `json:"admin_notes,omitempty"`
	ApprovedBy          *uuid.UUID           `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time           `json:"approved_at,omitempty"`
	RejectedBy          *uuid.UUID           `json:"rejected_by,omitempty"`
	RejectedAt          *time.Time           `json:"rejected_at,omitempty"`
	ProcessedBy         *uuid.UUID           `json:"processed_by,omitempty"`
	ProcessedAt         *time.Time           `json:"processed_at,omitempty"`
	WalletTransactionID *uuid.UUID           `json:"wallet_transaction_id,omitempty"`
	InvoiceID           *uuid.UUID           `json:"invoice_id,omitempty"`
}

// NewWithdrawalRequest creates a pending withdrawal request.
// partyID is a seller id for SELLER_REVENUE and a user id for WALLET.
func NewWithdrawalRequest(
	withdrawalType WithdrawalType,
	partyID uuid.UUID,
	amount valueobject.Money,
	destination PayoutDestination,
	description string,
) (*WithdrawalRequest, error) {
	if !withdrawalType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Withdrawal type is not valid")
	}
	owner := Owner{Kind: withdrawalType.OwnerKind(), ID: partyID}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidAmount, "Withdrawal amount must be positive")
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	wr := &WithdrawalRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              withdrawalType,
		Owner:             owner,
		Amount:            amount.Amount(),
		Currency:          amount.Currency(),
		Destination:       destination,
		Description:       description,
		Status:            WithdrawalStatusPending,
	}

	wr.AddDomainEvent(NewWithdrawalRequestedEvent(wr))

	return wr, nil
}

// Approve moves a pending request to approved
func (wr *WithdrawalRequest) Approve(adminID uuid.UUID, notes string) error {
	if wr.Status != WithdrawalStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot approve withdrawal request in %s status", wr.Status))
	}
	if adminID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "Approving admin id cannot be empty")
	}

	now := time.Now()
	wr.Status = WithdrawalStatusApproved
	wr.ApprovedBy = &adminID
	wr.ApprovedAt = &now
	wr.setNotes(notes)
	wr.UpdatedAt = now

	wr.AddDomainEvent(NewWithdrawalStatusChangedEvent(wr, WithdrawalStatusPending))

	return nil
}

// Reject moves a pending or approved request to rejected
func (wr *WithdrawalRequest) Reject(adminID uuid.UUID, notes string) error {
	if wr.Status != WithdrawalStatusPending && wr.Status != WithdrawalStatusApproved {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot reject withdrawal request in %s status", wr.Status))
	}

	previous := wr.Status
	now := time.Now()
	wr.Status = WithdrawalStatusRejected
	if adminID != uuid.Nil {
		wr.RejectedBy = &adminID
	}
	wr.RejectedAt = &now
	wr.setNotes(notes)
	wr.UpdatedAt = now

	wr.AddDomainEvent(NewWithdrawalStatusChangedEvent(wr, previous))

	return nil
}

// Process completes an approved request. Wallet withdrawals must link the debit.
func (wr *WithdrawalRequest) Process(adminID uuid.UUID, walletTransactionID *uuid.UUID) error {
	if wr.Status != WithdrawalStatusApproved {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot process withdrawal request in %s status", wr.Status))
	}
	if adminID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "Processing admin id cannot be empty")
	}
	if wr.Type == WithdrawalTypeWallet && (walletTransactionID == nil || *walletTransactionID == uuid.Nil) {
		return shared.NewDomainError(shared.CodeValidation, "Wallet withdrawals must reference the wallet debit")
	}

	now := time.Now()
	wr.Status = WithdrawalStatusProcessed
	wr.ProcessedBy = &adminID
	wr.ProcessedAt = &now
	if wr.Type == WithdrawalTypeWallet {
		wr.WalletTransactionID = walletTransactionID
	}
	wr.UpdatedAt = now

	wr.AddDomainEvent(NewWithdrawalStatusChangedEvent(wr, WithdrawalStatusApproved))

	return nil
}

// AttachPayoutInvoice links the gateway payout invoice of a deferred seller withdrawal
func (wr *WithdrawalRequest) AttachPayoutInvoice(invoiceID uuid.UUID) error {
	if wr.Type != WithdrawalTypeSellerRevenue {
		return shared.NewDomainError(shared.CodeInvalidState, "Only seller revenue withdrawals are paid out through an invoice")
	}
	if wr.Status != WithdrawalStatusApproved {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot attach a payout invoice in %s status", wr.Status))
	}
	if wr.InvoiceID != nil {
		return shared.NewDomainError(shared.CodeInvalidState, "A payout invoice is already attached")
	}
	wr.InvoiceID = &invoiceID
	wr.UpdatedAt = time.Now()
	return nil
}

// IsDeferred reports whether processing waits on a gateway payout
func (wr *WithdrawalRequest) IsDeferred() bool {
	return wr.Status == WithdrawalStatusApproved && wr.InvoiceID != nil
}

// Reference returns the idempotent reference WITHDRAWAL_REQUEST:<id>
func (wr *WithdrawalRequest) Reference() string {
	return WithdrawalTag(wr.ID)
}

// GetAmountMoney returns the requested amount as Money
func (wr *WithdrawalRequest) GetAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(wr.Amount, wr.Currency)
	return m
}

func (wr *WithdrawalRequest) setNotes(notes string) {
	if strings.TrimSpace(notes) != "" {
		wr.AdminNotes = strings.TrimSpace(notes)
	}
}
