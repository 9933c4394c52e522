package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Event type names for the invoice aggregate
const (
	EventTypeInvoiceCreated             = "InvoiceCreated"
	EventTypeInvoiceTransactionRecorded = "InvoiceTransactionRecorded"
	EventTypeInvoicePaid                = "InvoicePaid"
	EventTypeInvoiceCancelled           = "InvoiceCancelled"

	aggregateTypeInvoice = "Invoice"
)

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	Owner         Owner                `json:"owner"`
	Currency      valueobject.Currency `json:"currency"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return EventTypeInvoiceCreated
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, aggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Owner:           inv.Owner,
		Currency:        inv.Currency,
	}
}

// InvoiceTransactionRecordedEvent is raised when a transaction is added or succeeds
type InvoiceTransactionRecordedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	TransactionID uuid.UUID         `json:"transaction_id"`
	Reference     string            `json:"reference"`
	Method        PaymentMethod     `json:"method"`
	Status        TransactionStatus `json:"status"`
	Amount        decimal.Decimal   `json:"amount"`
}

// EventType returns the event type name
func (e *InvoiceTransactionRecordedEvent) EventType() string {
	return EventTypeInvoiceTransactionRecorded
}

// NewInvoiceTransactionRecordedEvent creates a new InvoiceTransactionRecordedEvent
func NewInvoiceTransactionRecordedEvent(inv *Invoice, tx *PaymentTransaction) *InvoiceTransactionRecordedEvent {
	return &InvoiceTransactionRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceTransactionRecorded, aggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		TransactionID:   tx.ID,
		Reference:       tx.Reference,
		Method:          tx.Method,
		Status:          tx.Status,
		Amount:          tx.Amount,
	}
}

// InvoicePaidEvent is raised when the paid amount reaches the grand total
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID         uuid.UUID       `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number"`
	Owner             Owner           `json:"owner"`
	ExternalReference string          `json:"external_reference,omitempty"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	PaidAt            time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return EventTypeInvoicePaid
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	paidAt := time.Now()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return &InvoicePaidEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeInvoicePaid, aggregateTypeInvoice, inv.ID),
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		Owner:             inv.Owner,
		ExternalReference: inv.ExternalReference,
		GrandTotal:        inv.GrandTotal(),
		PaidAmount:        inv.PaidAmount(),
		PaidAt:            paidAt,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Reason        string    `json:"reason,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceCancelledEvent) EventType() string {
	return EventTypeInvoiceCancelled
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, aggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Reason:          inv.CancelReason,
	}
}
