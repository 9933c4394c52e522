package finance

import (
	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Event type names for the withdrawal request aggregate
const (
	EventTypeWithdrawalRequested     = "WithdrawalRequested"
	EventTypeWithdrawalStatusChanged = "WithdrawalStatusChanged"

	aggregateTypeWithdrawalRequest = "WithdrawalRequest"
)

// WithdrawalRequestedEvent is raised when a withdrawal request is submitted
type WithdrawalRequestedEvent struct {
	shared.BaseDomainEvent
	RequestID uuid.UUID            `json:"request_id"`
	Type      WithdrawalType       `json:"type"`
	Owner     Owner                `json:"owner"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  valueobject.Currency `json:"currency"`
}

// EventType returns the event type name
func (e *WithdrawalRequestedEvent) EventType() string {
	return EventTypeWithdrawalRequested
}

// NewWithdrawalRequestedEvent creates a new WithdrawalRequestedEvent
func NewWithdrawalRequestedEvent(wr *WithdrawalRequest) *WithdrawalRequestedEvent {
	return &WithdrawalRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeWithdrawalRequested, aggregateTypeWithdrawalRequest, wr.ID),
		RequestID:       wr.ID,
		Type:            wr.Type,
		Owner:           wr.Owner,
		Amount:          wr.Amount,
		Currency:        wr.Currency,
	}
}

// WithdrawalStatusChangedEvent is raised on approve, reject and process
type WithdrawalStatusChangedEvent struct {
	shared.BaseDomainEvent
	RequestID      uuid.UUID        `json:"request_id"`
	Type           WithdrawalType   `json:"type"`
	Owner          Owner            `json:"owner"`
	PreviousStatus WithdrawalStatus `json:"previous_status"`
	Status         WithdrawalStatus `json:"status"`
	Amount         decimal.Decimal  `json:"amount"`
	AdminNotes     string           `json:"admin_notes,omitempty"`
}

// EventType returns the event type name
func (e *WithdrawalStatusChangedEvent) EventType() string {
	return EventTypeWithdrawalStatusChanged
}

// NewWithdrawalStatusChangedEvent creates a new WithdrawalStatusChangedEvent
func NewWithdrawalStatusChangedEvent(wr *WithdrawalRequest, previous WithdrawalStatus) *WithdrawalStatusChangedEvent {
	return &WithdrawalStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeWithdrawalStatusChanged, aggregateTypeWithdrawalRequest, wr.ID),
		RequestID:       wr.ID,
		Type:            wr.Type,
		Owner:           wr.Owner,
		PreviousStatus:  previous,
		Status:          wr.Status,
		Amount:          wr.Amount,
		AdminNotes:      wr.AdminNotes,
	}
}
