package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"          // No succeeded payment yet
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // 0 < paid < grand total
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // paid >= grand total
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"      // Terminal
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// InvoiceItemType tags what an invoice line is priced from
type InvoiceItemType string

const (
	InvoiceItemTypeProduct       InvoiceItemType = "PRODUCT"
	InvoiceItemTypeService       InvoiceItemType = "SERVICE"
	InvoiceItemTypeShipping      InvoiceItemType = "SHIPPING"
	InvoiceItemTypeWalletCharge  InvoiceItemType = "WALLET_CHARGE"
	InvoiceItemTypeMiscellaneous InvoiceItemType = "MISCELLANEOUS"
)

// IsValid checks if the item type is valid
func (t InvoiceItemType) IsValid() bool {
	switch t {
	case InvoiceItemTypeProduct, InvoiceItemTypeService, InvoiceItemTypeShipping,
		InvoiceItemTypeWalletCharge, InvoiceItemTypeMiscellaneous:
		return true
	}
	return false
}

// PaymentMethod represents how a payment transaction was settled
type PaymentMethod string

const (
	PaymentMethodWallet        PaymentMethod = "WALLET"
	PaymentMethodOnlineGateway PaymentMethod = "ONLINE_GATEWAY"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodWallet || m == PaymentMethodOnlineGateway
}

// TransactionStatus is shared by payment and wallet transactions
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusSucceeded TransactionStatus = "SUCCEEDED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsValid checks if the transaction status is valid
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSucceeded, TransactionStatusFailed:
		return true
	}
	return false
}

// InvoiceItem is a billable line of an invoice
type InvoiceItem struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Type        InvoiceItemType   `json:"type"`
	ReferenceID *uuid.UUID        `json:"reference_id,omitempty"` // Priced entity, e.g. product id
	Quantity    int               `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	Discount    decimal.Decimal   `json:"discount"`
	VariantID   *uuid.UUID        `json:"variant_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Total returns quantity * unit price - discount
func (i InvoiceItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.Discount)
}

// InvoiceItemInput carries the fields of a new invoice line
type InvoiceItemInput struct {
	Name        string
	Type        InvoiceItemType
	ReferenceID *uuid.UUID
	Quantity    int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	VariantID   *uuid.UUID
	Attributes  map[string]string
}

// PaymentTransaction is a payment attempt recorded against an invoice
type PaymentTransaction struct {
	ID          uuid.UUID         `json:"id"`
	Amount      decimal.Decimal   `json:"amount"`
	Method      PaymentMethod     `json:"method"`
	Status      TransactionStatus `json:"status"`
	Reference   string            `json:"reference"`
	GatewayName string            `json:"gateway_name,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    string            `json:"metadata,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
	CreatedAt   time.Time         `json:"created_at"`
}

// IsSucceeded reports whether the transaction counts toward the paid amount
func (t *PaymentTransaction) IsSucceeded() bool {
	return t.Status == TransactionStatusSucceeded
}

// AddTransactionInput carries the fields of a new payment transaction
type AddTransactionInput struct {
	Amount      decimal.Decimal
	Method      PaymentMethod
	Status      TransactionStatus
	Reference   string
	GatewayName string
	Description string
	Metadata    string
	OccurredAt  time.Time
}

// UpdateTransactionInput carries the mutable fields of a payment transaction.
// Nil fields are left unchanged.
type UpdateTransactionInput struct {
	Status       TransactionStatus
	Description  *string
	Metadata     *string
	OccurredAt   *time.Time
	ActualAmount *decimal.Decimal
}

// ShippingAddress is the delivery snapshot taken when the invoice is issued
type ShippingAddress struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	Province      string `json:"province"`
	City          string `json:"city"`
	AddressLine   string `json:"address_line"`
	PostalCode    string `json:"postal_code,omitempty"`
}

// Validate checks the required fields of the address
func (a ShippingAddress) Validate() error {
	if strings.TrimSpace(a.RecipientName) == "" {
		return shared.NewDomainError(shared.CodeValidation, "Recipient name cannot be empty")
	}
	if strings.TrimSpace(a.City) == "" {
		return shared.NewDomainError(shared.CodeValidation, "City cannot be empty")
	}
	if strings.TrimSpace(a.AddressLine) == "" {
		return shared.NewDomainError(shared.CodeValidation, "Address line cannot be empty")
	}
	return nil
}

// Invoice is the billable document aggregate root.
// GrandTotal, PaidAmount and OutstandingAmount are derived, never stored.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber     string               `json:"invoice_number"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	Currency          valueobject.Currency `json:"currency"`
	Owner             Owner                `json:"owner"`
	IssueDate         time.Time            `json:"issue_date"`
	DueDate           *time.Time           `json:"due_date,omitempty"`
	TaxAmount         decimal.Decimal      `json:"tax_amount"`
	AdjustmentAmount  decimal.Decimal      `json:"adjustment_amount"`
	ExternalReference string               `json:"external_reference,omitempty"`
	Status            InvoiceStatus        `json:"status"`
	Items             []InvoiceItem        `json:"items"`
	Transactions      []PaymentTransaction `json:"transactions"`
	ShippingAddress   *ShippingAddress     `json:"shipping_address,omitempty"`
	PaidAt            *time.Time           `json:"paid_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
	CancelReason      string               `json:"cancel_reason,omitempty"`
}

// NewInvoice creates a new draft invoice
func NewInvoice(
	invoiceNumber string,
	title string,
	currency valueobject.Currency,
	owner Owner,
	dueDate *time.Time,
) (*Invoice, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Invoice number cannot exceed 50 characters")
	}
	if strings.TrimSpace(title) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Invoice title cannot be empty")
	}
	if currency == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Currency cannot be empty")
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		Title:             strings.TrimSpace(title),
		Currency:          currency,
		Owner:             owner,
		IssueDate:         time.Now(),
		DueDate:           dueDate,
		TaxAmount:         decimal.Zero,
		AdjustmentAmount:  decimal.Zero,
		Status:            InvoiceStatusDraft,
		Items:             make([]InvoiceItem, 0),
		Transactions:      make([]PaymentTransaction, 0),
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// SetDescription sets the free-text description
func (inv *Invoice) SetDescription(description string) {
	inv.Description = description
	inv.Touch()
}

// SetExternalReference tags the invoice, e.g. as a wallet top-up or withdrawal payout
func (inv *Invoice) SetExternalReference(ref string) error {
	if len(ref) > 100 {
		return shared.NewDomainError(shared.CodeValidation, "External reference cannot exceed 100 characters")
	}
	inv.ExternalReference = strings.TrimSpace(ref)
	inv.Touch()
	return nil
}

// AddItem appends a line item. Items can only be added while the invoice is a draft.
func (inv *Invoice) AddItem(input InvoiceItemInput) (*InvoiceItem, error) {
	if inv.Status != InvoiceStatusDraft {
		return nil, shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot add items to invoice in %s status", inv.Status))
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item name cannot be empty")
	}
	if !input.Type.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item type is not valid")
	}
	if input.Quantity <= 0 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item quantity must be positive")
	}
	if input.UnitPrice.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item unit price cannot be negative")
	}
	if input.Discount.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item discount cannot be negative")
	}
	gross := input.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity)))
	if input.Discount.GreaterThan(gross) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item discount cannot exceed the line amount")
	}
	if input.Type == InvoiceItemTypeProduct && (input.ReferenceID == nil || *input.ReferenceID == uuid.Nil) {
		return nil, shared.NewDomainError(shared.CodeValidation, "Product items must reference a product")
	}

	item := InvoiceItem{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Type:        input.Type,
		ReferenceID: input.ReferenceID,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		Discount:    input.Discount,
		VariantID:   input.VariantID,
		Attributes:  input.Attributes,
	}
	inv.Items = append(inv.Items, item)
	inv.Touch()

	return &inv.Items[len(inv.Items)-1], nil
}

// SetTax sets the tax amount
func (inv *Invoice) SetTax(amount decimal.Decimal) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot modify a cancelled invoice")
	}
	if amount.IsNegative() {
		return shared.NewDomainError(shared.CodeValidation, "Tax amount cannot be negative")
	}
	inv.TaxAmount = amount
	inv.Touch()
	inv.recalculateStatus()
	return nil
}

// SetAdjustment sets a signed adjustment. The grand total cannot become negative.
func (inv *Invoice) SetAdjustment(amount decimal.Decimal) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot modify a cancelled invoice")
	}
	total := inv.itemsTotal().Add(inv.TaxAmount).Add(amount)
	if total.IsNegative() {
		return shared.NewDomainError(shared.CodeValidation, "Adjustment would make the grand total negative")
	}
	inv.AdjustmentAmount = amount
	inv.Touch()
	inv.recalculateStatus()
	return nil
}

// SetShippingAddress replaces the shipping snapshot
func (inv *Invoice) SetShippingAddress(addr ShippingAddress) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot change the shipping address of a cancelled invoice")
	}
	if err := addr.Validate(); err != nil {
		return err
	}
	inv.ShippingAddress = &addr
	inv.Touch()
	return nil
}

// AddTransaction records a payment transaction.
// Reference uniqueness is checked by the caller through FindTransactionByReference.
func (inv *Invoice) AddTransaction(input AddTransactionInput) (*PaymentTransaction, error) {
	if inv.Status == InvoiceStatusCancelled {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot add a transaction to a cancelled invoice")
	}
	if !input.Amount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidAmount, "Transaction amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Payment method is not valid")
	}
	if !input.Status.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Transaction status is not valid")
	}
	if strings.TrimSpace(input.Reference) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Transaction reference cannot be empty")
	}

	now := time.Now()
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	tx := PaymentTransaction{
		ID:          uuid.New(),
		Amount:      input.Amount,
		Method:      input.Method,
		Status:      input.Status,
		Reference:   strings.TrimSpace(input.Reference),
		GatewayName: input.GatewayName,
		Description: input.Description,
		Metadata:    input.Metadata,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
	}
	inv.Transactions = append(inv.Transactions, tx)
	inv.UpdatedAt = now

	inv.AddDomainEvent(NewInvoiceTransactionRecordedEvent(inv, &tx))
	inv.recalculateStatus()

	return inv.findTransaction(tx.ID), nil
}

// UpdateTransaction changes the status and details of an existing transaction.
// A succeeded transaction cannot be moved back to pending or failed.
func (inv *Invoice) UpdateTransaction(transactionID uuid.UUID, input UpdateTransactionInput) (*PaymentTransaction, error) {
	if inv.Status == InvoiceStatusCancelled {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot update a transaction of a cancelled invoice")
	}
	tx := inv.findTransaction(transactionID)
	if tx == nil {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Payment transaction not found")
	}
	if !input.Status.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Transaction status is not valid")
	}
	if tx.IsSucceeded() && input.Status != TransactionStatusSucceeded {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "A succeeded transaction cannot change status")
	}
	if input.ActualAmount != nil && !input.ActualAmount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidAmount, "Actual amount must be positive")
	}

	wasSucceeded := tx.IsSucceeded()
	tx.Status = input.Status
	if input.Description != nil {
		tx.Description = *input.Description
	}
	if input.Metadata != nil {
		tx.Metadata = *input.Metadata
	}
	if input.OccurredAt != nil {
		tx.OccurredAt = *input.OccurredAt
	}
	if input.ActualAmount != nil {
		tx.Amount = *input.ActualAmount
	}
	inv.Touch()

	if !wasSucceeded && tx.IsSucceeded() {
		inv.AddDomainEvent(NewInvoiceTransactionRecordedEvent(inv, tx))
	}
	inv.recalculateStatus()

	return tx, nil
}

// Cancel cancels the invoice. Pending transactions are marked failed.
func (inv *Invoice) Cancel(reason string) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState, "Invoice is already cancelled")
	}
	for i := range inv.Transactions {
		if inv.Transactions[i].IsSucceeded() {
			return shared.NewDomainError(shared.CodeInvalidState, "cannot cancel a paid invoice")
		}
	}

	now := time.Now()
	for i := range inv.Transactions {
		if inv.Transactions[i].Status == TransactionStatusPending {
			inv.Transactions[i].Status = TransactionStatusFailed
		}
	}
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))

	return nil
}

// recalculateStatus derives Draft/PartiallyPaid/Paid from the succeeded transactions
func (inv *Invoice) recalculateStatus() {
	if inv.Status == InvoiceStatusCancelled {
		return
	}
	paid := inv.PaidAmount()
	previous := inv.Status
	switch {
	case paid.IsPositive() && paid.GreaterThanOrEqual(inv.GrandTotal()):
		inv.Status = InvoiceStatusPaid
	case paid.IsPositive():
		inv.Status = InvoiceStatusPartiallyPaid
	default:
		inv.Status = InvoiceStatusDraft
	}

	if inv.Status == InvoiceStatusPaid && previous != InvoiceStatusPaid {
		now := time.Now()
		inv.PaidAt = &now
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	}
	if inv.Status != InvoiceStatusPaid {
		inv.PaidAt = nil
	}
}

func (inv *Invoice) itemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		total = total.Add(item.Total())
	}
	return total
}

// GrandTotal returns items + tax + adjustment
func (inv *Invoice) GrandTotal() decimal.Decimal {
	return inv.itemsTotal().Add(inv.TaxAmount).Add(inv.AdjustmentAmount)
}

// PaidAmount returns the sum of succeeded transactions
func (inv *Invoice) PaidAmount() decimal.Decimal {
	paid := decimal.Zero
	for _, tx := range inv.Transactions {
		if tx.IsSucceeded() {
			paid = paid.Add(tx.Amount)
		}
	}
	return paid
}

// OutstandingAmount returns GrandTotal - PaidAmount, possibly negative on overpayment
func (inv *Invoice) OutstandingAmount() decimal.Decimal {
	return inv.GrandTotal().Sub(inv.PaidAmount())
}

// GetGrandTotalMoney returns the grand total as Money
func (inv *Invoice) GetGrandTotalMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.GrandTotal(), inv.Currency)
	return m
}

// FindTransactionByReference finds a transaction by reference, case-insensitively
func (inv *Invoice) FindTransactionByReference(reference string) *PaymentTransaction {
	key := normalizeReference(reference)
	if key == "" {
		return nil
	}
	for i := range inv.Transactions {
		if normalizeReference(inv.Transactions[i].Reference) == key {
			return &inv.Transactions[i]
		}
	}
	return nil
}

// FindTransaction returns the transaction with the given id, or nil
func (inv *Invoice) FindTransaction(id uuid.UUID) *PaymentTransaction {
	return inv.findTransaction(id)
}

func (inv *Invoice) findTransaction(id uuid.UUID) *PaymentTransaction {
	for i := range inv.Transactions {
		if inv.Transactions[i].ID == id {
			return &inv.Transactions[i]
		}
	}
	return nil
}

// ProductItems returns the product lines that reference a product
func (inv *Invoice) ProductItems() []InvoiceItem {
	items := make([]InvoiceItem, 0, len(inv.Items))
	for _, item := range inv.Items {
		if item.Type == InvoiceItemTypeProduct && item.ReferenceID != nil {
			items = append(items, item)
		}
	}
	return items
}

// IsWalletCharge reports whether the invoice is a wallet top-up
func (inv *Invoice) IsWalletCharge() bool {
	return IsWalletChargeReference(inv.ExternalReference)
}

// WithdrawalRequestID returns the withdrawal request paid out by this invoice, if any
func (inv *Invoice) WithdrawalRequestID() (uuid.UUID, bool) {
	return ParseWithdrawalReference(inv.ExternalReference)
}

// IsPaid reports whether the invoice is fully paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

func normalizeReference(ref string) string {
	return cases.Fold().String(strings.TrimSpace(ref))
}
