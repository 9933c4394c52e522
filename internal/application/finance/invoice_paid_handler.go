package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SellerShareCharger credits sellers for a paid invoice
type SellerShareCharger interface {
	ChargeSellerShare(ctx context.Context, invoiceID uuid.UUID) (*SellerShareReport, error)
}

// InvoicePaidHandler handles InvoicePaidEvent and distributes seller shares.
// Wallet top-up and withdrawal payout invoices carry no seller revenue and are ignored.
type InvoicePaidHandler struct {
	charger SellerShareCharger
	logger  *zap.Logger
}

// NewInvoicePaidHandler creates a new handler for invoice paid events
func NewInvoicePaidHandler(charger SellerShareCharger, logger *zap.Logger) *InvoicePaidHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoicePaidHandler{
		charger: charger,
		logger:  logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *InvoicePaidHandler) EventTypes() []string {
	return []string{finance.EventTypeInvoicePaid}
}

// Handle processes an InvoicePaidEvent by charging the seller shares
func (h *InvoicePaidHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	paidEvent, ok := event.(*finance.InvoicePaidEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", finance.EventTypeInvoicePaid),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			finance.EventTypeInvoicePaid, event.EventType())
	}

	if finance.IsWalletChargeReference(paidEvent.ExternalReference) {
		return nil
	}
	if _, ok := finance.ParseWithdrawalReference(paidEvent.ExternalReference); ok {
		return nil
	}

	report, err := h.charger.ChargeSellerShare(ctx, paidEvent.InvoiceID)
	if err != nil {
		h.logger.Error("failed to charge seller share for paid invoice",
			zap.String("invoice_id", paidEvent.InvoiceID.String()),
			zap.String("invoice_number", paidEvent.InvoiceNumber),
			zap.Error(err),
		)
		return fmt.Errorf("failed to charge seller share: %w", err)
	}

	if failed := report.Count(SellerShareFailed); failed > 0 {
		h.logger.Warn("seller share partially failed, re-run to retry the failed sellers",
			zap.String("invoice_id", paidEvent.InvoiceID.String()),
			zap.Int("failed", failed),
		)
	}
	return nil
}

// Ensure InvoicePaidHandler implements EventHandler
var _ shared.EventHandler = (*InvoicePaidHandler)(nil)
