package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Totals are derived from items and transactions and are not stored.
type InvoiceModel struct {
	AggregateModel
	OwnerColumns
	InvoiceNumber     string                                       `gorm:"type:varchar(50);not null;uniqueIndex"`
	Title             string                                       `gorm:"type:varchar(200);not null"`
	Description       string                                       `gorm:"type:text"`
	Currency          valueobject.Currency                         `gorm:"type:varchar(3);not null"`
	IssueDate         time.Time                                    `gorm:"not null"`
	DueDate           *time.Time                                   `gorm:"index"`
	TaxAmount         decimal.Decimal                              `gorm:"type:decimal(18,4);not null"`
	AdjustmentAmount  decimal.Decimal                              `gorm:"type:decimal(18,4);not null"`
	ExternalReference string                                       `gorm:"type:varchar(100);index"`
	Status            finance.InvoiceStatus                        `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	ShippingAddress   datatypes.JSONType[*finance.ShippingAddress] `gorm:"type:jsonb"`
	PaidAt            *time.Time
	CancelledAt       *time.Time
	CancelReason      string                    `gorm:"type:varchar(500)"`
	Items             []InvoiceItemModel        `gorm:"foreignKey:InvoiceID;references:ID"`
	Transactions      []PaymentTransactionModel `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *finance.Invoice {
	inv := &finance.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		InvoiceNumber:     m.InvoiceNumber,
		Title:             m.Title,
		Description:       m.Description,
		Currency:          m.Currency,
		Owner:             m.ToDomainOwner(),
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		TaxAmount:         m.TaxAmount,
		AdjustmentAmount:  m.AdjustmentAmount,
		ExternalReference: m.ExternalReference,
		Status:            m.Status,
		ShippingAddress:   m.ShippingAddress.Data(),
		PaidAt:            m.PaidAt,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
		Items:             make([]finance.InvoiceItem, len(m.Items)),
		Transactions:      make([]finance.PaymentTransaction, len(m.Transactions)),
	}
	for i := range m.Items {
		inv.Items[i] = m.Items[i].ToDomain()
	}
	for i := range m.Transactions {
		inv.Transactions[i] = m.Transactions[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *finance.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.FromDomainOwner(inv.Owner)
	m.InvoiceNumber = inv.InvoiceNumber
	m.Title = inv.Title
	m.Description = inv.Description
	m.Currency = inv.Currency
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.TaxAmount = inv.TaxAmount
	m.AdjustmentAmount = inv.AdjustmentAmount
	m.ExternalReference = inv.ExternalReference
	m.Status = inv.Status
	m.ShippingAddress = datatypes.NewJSONType(inv.ShippingAddress)
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		m.Items[i] = InvoiceItemModelFromDomain(inv.ID, i, inv.Items[i])
	}
	m.Transactions = make([]PaymentTransactionModel, len(inv.Transactions))
	for i := range inv.Transactions {
		m.Transactions[i] = PaymentTransactionModelFromDomain(inv.ID, i, inv.Transactions[i])
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *finance.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for an invoice line
type InvoiceItemModel struct {
	ID          uuid.UUID               `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID               `gorm:"type:uuid;not null;index"`
	Position    int                     `gorm:"not null"`
	Name        string                  `gorm:"type:varchar(200);not null"`
	Type        finance.InvoiceItemType `gorm:"type:varchar(20);not null"`
	ReferenceID *uuid.UUID              `gorm:"type:uuid;index"`
	Quantity    int                     `gorm:"not null"`
	UnitPrice   decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Discount    decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	VariantID   *uuid.UUID              `gorm:"type:uuid"`
	Attributes  datatypes.JSONMap       `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() finance.InvoiceItem {
	item := finance.InvoiceItem{
		ID:          m.ID,
		Name:        m.Name,
		Type:        m.Type,
		ReferenceID: m.ReferenceID,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		Discount:    m.Discount,
		VariantID:   m.VariantID,
	}
	if len(m.Attributes) > 0 {
		item.Attributes = make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			if s, ok := v.(string); ok {
				item.Attributes[k] = s
			}
		}
	}
	return item
}

// InvoiceItemModelFromDomain creates a persistence model for the item at position
func InvoiceItemModelFromDomain(invoiceID uuid.UUID, position int, item finance.InvoiceItem) InvoiceItemModel {
	m := InvoiceItemModel{
		ID:          item.ID,
		InvoiceID:   invoiceID,
		Position:    position,
		Name:        item.Name,
		Type:        item.Type,
		ReferenceID: item.ReferenceID,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Discount:    item.Discount,
		VariantID:   item.VariantID,
	}
	if len(item.Attributes) > 0 {
		m.Attributes = make(datatypes.JSONMap, len(item.Attributes))
		for k, v := range item.Attributes {
			m.Attributes[k] = v
		}
	}
	return m
}

// PaymentTransactionModel is the persistence model for a payment attempt on an invoice
type PaymentTransactionModel struct {
	ID          uuid.UUID                 `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Position    int                       `gorm:"not null"`
	Amount      decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Method      finance.PaymentMethod     `gorm:"type:varchar(20);not null"`
	Status      finance.TransactionStatus `gorm:"type:varchar(20);not null;index"`
	Reference   string                    `gorm:"type:varchar(100);not null;index"`
	GatewayName string                    `gorm:"type:varchar(50)"`
	Description string                    `gorm:"type:text"`
	Metadata    string                    `gorm:"type:text"`
	OccurredAt  time.Time                 `gorm:"not null"`
	CreatedAt   time.Time                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentTransactionModel) TableName() string {
	return "payment_transactions"
}

// ToDomain converts the persistence model to a domain PaymentTransaction
func (m *PaymentTransactionModel) ToDomain() finance.PaymentTransaction {
	return finance.PaymentTransaction{
		ID:          m.ID,
		Amount:      m.Amount,
		Method:      m.Method,
		Status:      m.Status,
		Reference:   m.Reference,
		GatewayName: m.GatewayName,
		Description: m.Description,
		Metadata:    m.Metadata,
		OccurredAt:  m.OccurredAt,
		CreatedAt:   m.CreatedAt,
	}
}

// PaymentTransactionModelFromDomain creates a persistence model for the transaction at position
func PaymentTransactionModelFromDomain(invoiceID uuid.UUID, position int, tx finance.PaymentTransaction) PaymentTransactionModel {
	return PaymentTransactionModel{
		ID:          tx.ID,
		InvoiceID:   invoiceID,
		Position:    position,
		Amount:      tx.Amount,
		Method:      tx.Method,
		Status:      tx.Status,
		Reference:   tx.Reference,
		GatewayName: tx.GatewayName,
		Description: tx.Description,
		Metadata:    tx.Metadata,
		OccurredAt:  tx.OccurredAt,
		CreatedAt:   tx.CreatedAt,
	}
}

// WalletAccountModel is the persistence model for the WalletAccount aggregate root.
// The balance is folded from the transaction log and not stored.
type WalletAccountModel struct {
	AggregateModel
	OwnerKind    finance.OwnerKind        `gorm:"type:varchar(20);not null;uniqueIndex:idx_wallet_owner_currency,priority:1"`
	OwnerID      uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_wallet_owner_currency,priority:2"`
	Currency     valueobject.Currency     `gorm:"type:varchar(3);not null;uniqueIndex:idx_wallet_owner_currency,priority:3"`
	IsLocked     bool                     `gorm:"not null;default:false"`
	LockReason   string                   `gorm:"type:varchar(500)"`
	Transactions []WalletTransactionModel `gorm:"foreignKey:WalletAccountID;references:ID"`
}

// TableName returns the table name for GORM
func (WalletAccountModel) TableName() string {
	return "wallet_accounts"
}

// ToDomain converts the persistence model to a domain WalletAccount
func (m *WalletAccountModel) ToDomain() *finance.WalletAccount {
	account := &finance.WalletAccount{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Owner:             finance.Owner{Kind: m.OwnerKind, ID: m.OwnerID},
		Currency:          m.Currency,
		IsLocked:          m.IsLocked,
		LockReason:        m.LockReason,
		Transactions:      make([]finance.WalletTransaction, len(m.Transactions)),
	}
	for i := range m.Transactions {
		account.Transactions[i] = m.Transactions[i].ToDomain()
	}
	return account
}

// FromDomain populates the persistence model from a domain WalletAccount
func (m *WalletAccountModel) FromDomain(account *finance.WalletAccount) {
	m.FromDomainAggregateRoot(account.BaseAggregateRoot)
	m.OwnerKind = account.Owner.Kind
	m.OwnerID = account.Owner.ID
	m.Currency = account.Currency
	m.IsLocked = account.IsLocked
	m.LockReason = account.LockReason
	m.Transactions = make([]WalletTransactionModel, len(account.Transactions))
	for i := range account.Transactions {
		m.Transactions[i] = WalletTransactionModelFromDomain(account.ID, i, account.Transactions[i])
	}
}

// WalletAccountModelFromDomain creates a new persistence model from a domain WalletAccount
func WalletAccountModelFromDomain(account *finance.WalletAccount) *WalletAccountModel {
	m := &WalletAccountModel{}
	m.FromDomain(account)
	return m
}

// WalletTransactionModel is the persistence model for one wallet ledger entry
type WalletTransactionModel struct {
	ID                   uuid.UUID                     `gorm:"type:uuid;primary_key"`
	WalletAccountID      uuid.UUID                     `gorm:"type:uuid;not null;index"`
	Position             int                           `gorm:"not null"`
	Type                 finance.WalletTransactionType `gorm:"type:varchar(10);not null"`
	Amount               decimal.Decimal               `gorm:"type:decimal(18,4);not null"`
	Reference            string                        `gorm:"type:varchar(100);not null;index"`
	Description          string                        `gorm:"type:text"`
	Metadata             string                        `gorm:"type:text"`
	InvoiceID            *uuid.UUID                    `gorm:"type:uuid;index"`
	PaymentTransactionID *uuid.UUID                    `gorm:"type:uuid"`
	Status               finance.TransactionStatus     `gorm:"type:varchar(20);not null"`
	OccurredAt           time.Time                     `gorm:"not null"`
	CreatedAt            time.Time                     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WalletTransactionModel) TableName() string {
	return "wallet_transactions"
}

// ToDomain converts the persistence model to a domain WalletTransaction
func (m *WalletTransactionModel) ToDomain() finance.WalletTransaction {
	return finance.WalletTransaction{
		ID:                   m.ID,
		Type:                 m.Type,
		Amount:               m.Amount,
		Reference:            m.Reference,
		Description:          m.Description,
		Metadata:             m.Metadata,
		InvoiceID:            m.InvoiceID,
		PaymentTransactionID: m.PaymentTransactionID,
		Status:               m.Status,
		OccurredAt:           m.OccurredAt,
		CreatedAt:            m.CreatedAt,
	}
}

// WalletTransactionModelFromDomain creates a persistence model for the entry at position
func WalletTransactionModelFromDomain(accountID uuid.UUID, position int, tx finance.WalletTransaction) WalletTransactionModel {
	return WalletTransactionModel{
		ID:                   tx.ID,
		WalletAccountID:      accountID,
		Position:             position,
		Type:                 tx.Type,
		Amount:               tx.Amount,
		Reference:            tx.Reference,
		Description:          tx.Description,
		Metadata:             tx.Metadata,
		InvoiceID:            tx.InvoiceID,
		PaymentTransactionID: tx.PaymentTransactionID,
		Status:               tx.Status,
		OccurredAt:           tx.OccurredAt,
		CreatedAt:            tx.CreatedAt,
	}
}

// WithdrawalRequestModel is the persistence model for the WithdrawalRequest aggregate root
type WithdrawalRequestModel struct {
	AggregateModel
	OwnerColumns
	Type                finance.WithdrawalType   `gorm:"type:varchar(20);not null;index"`
	Amount              decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	Currency            valueobject.Currency     `gorm:"type:varchar(3);not null"`
	BankAccountNumber   string                   `gorm:"type:varchar(50)"`
	CardNumber          string                   `gorm:"type:varchar(30)"`
	IBAN                string                   `gorm:"column:iban;type:varchar(40)"`
	BankName            string                   `gorm:"type:varchar(100)"`
	AccountHolderName   string                   `gorm:"type:varchar(200)"`
	Description         string                   `gorm:"type:text"`
	Status              finance.WithdrawalStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AdminNotes          string                   `gorm:"type:text"`
	ApprovedBy          *uuid.UUID               `gorm:"type:uuid"`
	ApprovedAt          *time.Time
	RejectedBy          *uuid.UUID `gorm:"type:uuid"`
	RejectedAt          *time.Time
	ProcessedBy         *uuid.UUID `gorm:"type:uuid"`
	ProcessedAt         *time.Time
	WalletTransactionID *uuid.UUID `gorm:"type:uuid"`
	InvoiceID           *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (WithdrawalRequestModel) TableName() string {
	return "withdrawal_requests"
}

// ToDomain converts the persistence model to a domain WithdrawalRequest
func (m *WithdrawalRequestModel) ToDomain() *finance.WithdrawalRequest {
	return &finance.WithdrawalRequest{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Type:              m.Type,
		Owner:             m.ToDomainOwner(),
		Amount:            m.Amount,
		Currency:          m.Currency,
		Destination: finance.PayoutDestination{
			BankAccountNumber: m.BankAccountNumber,
			CardNumber:        m.CardNumber,
			IBAN:              m.IBAN,
			BankName:          m.BankName,
			AccountHolderName: m.AccountHolderName,
		},
		Description:         m.Description,
		Status:              m.Status,
		AdminNotes:          m.AdminNotes,
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
		RejectedBy:          m.RejectedBy,
		RejectedAt:          m.RejectedAt,
		ProcessedBy:         m.ProcessedBy,
		ProcessedAt:         m.ProcessedAt,
		WalletTransactionID: m.WalletTransactionID,
		InvoiceID:           m.InvoiceID,
	}
}

// FromDomain populates the persistence model from a domain WithdrawalRequest
func (m *WithdrawalRequestModel) FromDomain(wr *finance.WithdrawalRequest) {
	m.FromDomainAggregateRoot(wr.BaseAggregateRoot)
	m.FromDomainOwner(wr.Owner)
	m.Type = wr.Type
	m.Amount = wr.Amount
	m.Currency = wr.Currency
	m.BankAccountNumber = wr.Destination.BankAccountNumber
	m.CardNumber = wr.Destination.CardNumber
	m.IBAN = wr.Destination.IBAN
	m.BankName = wr.Destination.BankName
	m.AccountHolderName = wr.Destination.AccountHolderName
	m.Description = wr.Description
	m.Status = wr.Status
	m.AdminNotes = wr.AdminNotes
	m.ApprovedBy = wr.ApprovedBy
	m.ApprovedAt = wr.ApprovedAt
	m.RejectedBy = wr.RejectedBy
	m.RejectedAt = wr.RejectedAt
	m.ProcessedBy = wr.ProcessedBy
	m.ProcessedAt = wr.ProcessedAt
	m.WalletTransactionID = wr.WalletTransactionID
	m.InvoiceID = wr.InvoiceID
}

// WithdrawalRequestModelFromDomain creates a new persistence model from a domain WithdrawalRequest
func WithdrawalRequestModelFromDomain(wr *finance.WithdrawalRequest) *WithdrawalRequestModel {
	m := &WithdrawalRequestModel{}
	m.FromDomain(wr)
	return m
}
