package handler

import (
	"time"

	"github.com/google/uuid"
	financeapp "github.com/shopledger/backend/internal/application/finance"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// OwnerRequest identifies the owning party of a document
//
//	@Description	Owning party; id is omitted for PLATFORM
type OwnerRequest struct {
	Kind string     `json:"kind" binding:"required,oneof=USER SELLER PLATFORM user seller platform" example:"USER"`
	ID   *uuid.UUID `json:"id,omitempty"`
}

// ToOwner converts the request to a domain owner
func (r OwnerRequest) ToOwner() (finance.Owner, error) {
	kind, err := finance.ParseOwnerKind(r.Kind)
	if err != nil {
		return finance.Owner{}, err
	}
	owner := finance.Owner{Kind: kind}
	if r.ID != nil {
		owner.ID = *r.ID
	}
	return owner, owner.Validate()
}

// InvoiceItemRequest is one line of a new invoice
type InvoiceItemRequest struct {
	Name        string            `json:"name" binding:"required,max=200" example:"Ceramic mug"`
	Type        string            `json:"type" binding:"required,oneof=PRODUCT SERVICE SHIPPING WALLET_CHARGE MISCELLANEOUS" example:"PRODUCT"`
	ReferenceID *uuid.UUID        `json:"reference_id,omitempty"`
	Quantity    int               `json:"quantity" binding:"required,min=1" example:"2"`
	UnitPrice   decimal.Decimal   `json:"unit_price" binding:"decimal_gte0" swaggertype:"string" example:"150000"`
	Discount    decimal.Decimal   `json:"discount" binding:"decimal_gte0" swaggertype:"string" example:"0"`
	VariantID   *uuid.UUID        `json:"variant_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ShippingAddressRequest is the delivery address snapshot of an invoice
type ShippingAddressRequest struct {
	RecipientName string `json:"recipient_name" binding:"required,max=200"`
	Phone         string `json:"phone" binding:"required,max=32"`
	Province      string `json:"province" binding:"max=100"`
	City          string `json:"city" binding:"required,max=100"`
	AddressLine   string `json:"address_line" binding:"required,max=500"`
	PostalCode    string `json:"postal_code" binding:"max=20"`
}

// ToDomain converts the request to a domain shipping address
func (r ShippingAddressRequest) ToDomain() finance.ShippingAddress {
	return finance.ShippingAddress{
		RecipientName: r.RecipientName,
		Phone:         r.Phone,
		Province:      r.Province,
		City:          r.City,
		AddressLine:   r.AddressLine,
		PostalCode:    r.PostalCode,
	}
}

// CreateInvoiceRequest is the body of POST /invoices
type CreateInvoiceRequest struct {
	Title             string                  `json:"title" binding:"required,max=200" example:"Order #1042"`
	Description       string                  `json:"description" binding:"max=2000"`
	Currency          string                  `json:"currency" binding:"omitempty,currency" example:"IRR"`
	Owner             OwnerRequest            `json:"owner" binding:"required"`
	DueDate           *time.Time              `json:"due_date,omitempty"`
	Items             []InvoiceItemRequest    `json:"items" binding:"required,min=1,dive"`
	TaxAmount         decimal.Decimal         `json:"tax_amount" binding:"decimal_gte0" swaggertype:"string" example:"0"`
	AdjustmentAmount  decimal.Decimal         `json:"adjustment_amount" swaggertype:"string" example:"0"`
	ExternalReference string                  `json:"external_reference" binding:"max=100"`
	ShippingAddress   *ShippingAddressRequest `json:"shipping_address,omitempty"`
}

// ToCommand converts the request to the application command
func (r CreateInvoiceRequest) ToCommand() (financeapp.CreateInvoiceRequest, error) {
	owner, err := r.Owner.ToOwner()
	if err != nil {
		return financeapp.CreateInvoiceRequest{}, err
	}
	cmd := financeapp.CreateInvoiceRequest{
		Title:             r.Title,
		Description:       r.Description,
		Currency:          currencyOf(r.Currency),
		Owner:             owner,
		DueDate:           r.DueDate,
		TaxAmount:         r.TaxAmount,
		AdjustmentAmount:  r.AdjustmentAmount,
		ExternalReference: r.ExternalReference,
		Items:             make([]finance.InvoiceItemInput, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		cmd.Items = append(cmd.Items, finance.InvoiceItemInput{
			Name:        item.Name,
			Type:        finance.InvoiceItemType(item.Type),
			ReferenceID: item.ReferenceID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			VariantID:   item.VariantID,
			Attributes:  item.Attributes,
		})
	}
	if r.ShippingAddress != nil {
		addr := r.ShippingAddress.ToDomain()
		cmd.ShippingAddress = &addr
	}
	return cmd, nil
}

// SubmitTransactionRequest is the body of POST /invoices/:id/transactions
type SubmitTransactionRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"decimal_gt0" swaggertype:"string" example:"150000"`
	Method      string          `json:"method" binding:"required,oneof=WALLET ONLINE_GATEWAY" example:"ONLINE_GATEWAY"`
	Status      string          `json:"status" binding:"omitempty,oneof=PENDING SUCCEEDED FAILED" example:"SUCCEEDED"`
	Reference   string          `json:"reference" binding:"required,max=100" example:"GW20260301120000A1B2C3"`
	GatewayName string          `json:"gateway_name" binding:"max=100"`
	Description string          `json:"description" binding:"max=500"`
	Metadata    string          `json:"metadata" binding:"max=2000"`
	OccurredAt  *time.Time      `json:"occurred_at,omitempty"`
}

// ToCommand converts the request to the application command
func (r SubmitTransactionRequest) ToCommand() financeapp.SubmitTransactionRequest {
	cmd := financeapp.SubmitTransactionRequest{
		Amount:      r.Amount,
		Method:      finance.PaymentMethod(r.Method),
		Status:      finance.TransactionStatus(r.Status),
		Reference:   r.Reference,
		GatewayName: r.GatewayName,
		Description: r.Description,
		Metadata:    r.Metadata,
	}
	if r.OccurredAt != nil {
		cmd.OccurredAt = *r.OccurredAt
	}
	return cmd
}

// UpdateTransactionRequest is the body of PUT /invoices/:id/transactions/:txId
type UpdateTransactionRequest struct {
	Status       string           `json:"status" binding:"required,oneof=PENDING SUCCEEDED FAILED" example:"SUCCEEDED"`
	Description  *string          `json:"description,omitempty" binding:"omitempty,max=500"`
	Metadata     *string          `json:"metadata,omitempty" binding:"omitempty,max=2000"`
	OccurredAt   *time.Time       `json:"occurred_at,omitempty"`
	ActualAmount *decimal.Decimal `json:"actual_amount,omitempty" binding:"omitempty,decimal_gt0" swaggertype:"string"`
}

// ToInput converts the request to the domain input
func (r UpdateTransactionRequest) ToInput() finance.UpdateTransactionInput {
	return finance.UpdateTransactionInput{
		Status:       finance.TransactionStatus(r.Status),
		Description:  r.Description,
		Metadata:     r.Metadata,
		OccurredAt:   r.OccurredAt,
		ActualAmount: r.ActualAmount,
	}
}

// CancelInvoiceRequest is the body of POST /invoices/:id/cancel
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=500" example:"Customer changed their mind"`
}

// PayWithWalletRequest is the body of POST /invoices/:id/pay-with-wallet.
// A missing amount pays the whole outstanding amount.
type PayWithWalletRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty" binding:"omitempty,decimal_gt0" swaggertype:"string"`
	Reference   string           `json:"reference" binding:"max=100"`
	Description string           `json:"description" binding:"max=500"`
}

// StartGatewayPaymentRequest is the body of POST /invoices/:id/gateway-payments
type StartGatewayPaymentRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty" binding:"omitempty,decimal_gt0" swaggertype:"string"`
	Description string           `json:"description" binding:"max=500"`
}

// ListInvoicesQuery holds the query parameters of GET /invoices
type ListInvoicesQuery struct {
	OwnerKind string `form:"owner_kind" binding:"omitempty,oneof=USER SELLER PLATFORM user seller platform"`
	OwnerID   string `form:"owner_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=DRAFT PARTIALLY_PAID PAID CANCELLED"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InvoiceResponse is an invoice with its derived amounts
//
//	@Description	Invoice with items, transactions and derived totals
type InvoiceResponse struct {
	ID                uuid.UUID                    `json:"id"`
	InvoiceNumber     string                       `json:"invoice_number" example:"INV-20260301-000042"`
	Title             string                       `json:"title"`
	Description       string                       `json:"description,omitempty"`
	Currency          string                       `json:"currency" example:"IRR"`
	Owner             finance.Owner                `json:"owner"`
	Status            string                       `json:"status" example:"DRAFT"`
	IssueDate         time.Time                    `json:"issue_date"`
	DueDate           *time.Time                   `json:"due_date,omitempty"`
	Items             []finance.InvoiceItem        `json:"items"`
	Transactions      []finance.PaymentTransaction `json:"transactions"`
	TaxAmount         decimal.Decimal              `json:"tax_amount" swaggertype:"string"`
	AdjustmentAmount  decimal.Decimal              `json:"adjustment_amount" swaggertype:"string"`
	GrandTotal        decimal.Decimal              `json:"grand_total" swaggertype:"string"`
	PaidAmount        decimal.Decimal              `json:"paid_amount" swaggertype:"string"`
	OutstandingAmount decimal.Decimal              `json:"outstanding_amount" swaggertype:"string"`
	ExternalReference string                       `json:"external_reference,omitempty"`
	ShippingAddress   *finance.ShippingAddress     `json:"shipping_address,omitempty"`
	PaidAt            *time.Time                   `json:"paid_at,omitempty"`
	CancelledAt       *time.Time                   `json:"cancelled_at,omitempty"`
	CancelReason      string                       `json:"cancel_reason,omitempty"`
	Version           int                          `json:"version"`
	CreatedAt         time.Time                    `json:"created_at"`
	UpdatedAt         time.Time                    `json:"updated_at"`
}

// ToInvoiceResponse maps a domain invoice to its response
func ToInvoiceResponse(inv *finance.Invoice) InvoiceResponse {
	items := inv.Items
	if items == nil {
		items = []finance.InvoiceItem{}
	}
	txs := inv.Transactions
	if txs == nil {
		txs = []finance.PaymentTransaction{}
	}
	return InvoiceResponse{
		ID:                inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		Title:             inv.Title,
		Description:       inv.Description,
		Currency:          string(inv.Currency),
		Owner:             inv.Owner,
		Status:            string(inv.Status),
		IssueDate:         inv.IssueDate,
		DueDate:           inv.DueDate,
		Items:             items,
		Transactions:      txs,
		TaxAmount:         inv.TaxAmount,
		AdjustmentAmount:  inv.AdjustmentAmount,
		GrandTotal:        inv.GrandTotal(),
		PaidAmount:        inv.PaidAmount(),
		OutstandingAmount: inv.OutstandingAmount(),
		ExternalReference: inv.ExternalReference,
		ShippingAddress:   inv.ShippingAddress,
		PaidAt:            inv.PaidAt,
		CancelledAt:       inv.CancelledAt,
		CancelReason:      inv.CancelReason,
		Version:           inv.Version,
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}
}

// InvoiceTransactionResponse is an invoice and the transaction just recorded or updated
type InvoiceTransactionResponse struct {
	Invoice     InvoiceResponse            `json:"invoice"`
	Transaction finance.PaymentTransaction `json:"transaction"`
}

// PayWithWalletResponse is the outcome of a wallet payment
type PayWithWalletResponse struct {
	Invoice           InvoiceResponse            `json:"invoice"`
	Transaction       finance.PaymentTransaction `json:"transaction"`
	WalletTransaction finance.WalletTransaction  `json:"wallet_transaction"`
	WalletBalance     decimal.Decimal            `json:"wallet_balance" swaggertype:"string"`
}

// GatewayPaymentResponse tells the client where to complete an online payment
type GatewayPaymentResponse struct {
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	TransactionID  uuid.UUID       `json:"transaction_id"`
	TrackingNumber string          `json:"tracking_number" example:"GW20260301120000A1B2C3"`
	Amount         decimal.Decimal `json:"amount" swaggertype:"string"`
	Currency       string          `json:"currency" example:"IRR"`
	GatewayName    string          `json:"gateway_name"`
	MerchantID     string          `json:"merchant_id"`
}

// ToGatewayPaymentResponse maps the application result to its response
func ToGatewayPaymentResponse(r *financeapp.GatewayPaymentResult) GatewayPaymentResponse {
	return GatewayPaymentResponse{
		InvoiceID:      r.InvoiceID,
		TransactionID:  r.TransactionID,
		TrackingNumber: r.TrackingNumber,
		Amount:         r.Amount,
		Currency:       string(r.Currency),
		GatewayName:    r.GatewayName,
		MerchantID:     r.MerchantID,
	}
}
