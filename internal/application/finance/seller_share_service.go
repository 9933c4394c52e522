package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/finance/acl"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SellerShareOutcome is the result of distributing an invoice to one seller
type SellerShareOutcome string

const (
	SellerShareCredited        SellerShareOutcome = "CREDITED"
	SellerShareSkipped         SellerShareOutcome = "SKIPPED"
	SellerShareAlreadyCredited SellerShareOutcome = "ALREADY_CREDITED"
	SellerShareFailed          SellerShareOutcome = "FAILED"
)

// SellerShareLine reports what happened for one seller
type SellerShareLine struct {
	SellerID            uuid.UUID          `json:"seller_id"`
	Outcome             SellerShareOutcome `json:"outcome"`
	TotalAmount         decimal.Decimal    `json:"total_amount"`
	SharePercentage     decimal.Decimal    `json:"share_percentage"`
	SellerShare         decimal.Decimal    `json:"seller_share"`
	PlatformCommission  decimal.Decimal    `json:"platform_commission"`
	WalletTransactionID *uuid.UUID         `json:"wallet_transaction_id,omitempty"`
	Reason              string             `json:"reason,omitempty"`
}

// SellerShareReport is the per-seller outcome of ChargeSellerShare
type SellerShareReport struct {
	InvoiceID uuid.UUID         `json:"invoice_id"`
	Lines     []SellerShareLine `json:"lines"`
}

// Count returns the number of sellers with the given outcome
func (r *SellerShareReport) Count(outcome SellerShareOutcome) int {
	n := 0
	for _, line := range r.Lines {
		if line.Outcome == outcome {
			n++
		}
	}
	return n
}

// SellerShareService credits sellers their share of paid invoices
type SellerShareService struct {
	invoiceRepo finance.InvoiceRepository
	wallets     *WalletService
	products    acl.ProductSellerLookup
	profiles    acl.SellerProfileLookup
	settings    acl.FinancialSettingsQuery
	metrics     *telemetry.LedgerMetrics
	logger      *zap.Logger
}

// SellerShareServiceConfig holds the dependencies of SellerShareService
type SellerShareServiceConfig struct {
	InvoiceRepo finance.InvoiceRepository
	Wallets     *WalletService
	Products    acl.ProductSellerLookup
	Profiles    acl.SellerProfileLookup
	Settings    acl.FinancialSettingsQuery
	Metrics     *telemetry.LedgerMetrics
	Logger      *zap.Logger
}

// NewSellerShareService creates a new SellerShareService
func NewSellerShareService(cfg SellerShareServiceConfig) *SellerShareService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SellerShareService{
		invoiceRepo: cfg.InvoiceRepo,
		wallets:     cfg.Wallets,
		products:    cfg.Products,
		profiles:    cfg.Profiles,
		settings:    cfg.Settings,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// ChargeSellerShare credits every seller of a paid invoice with their share.
// Sellers are processed one after another and a failure for one seller is
// reported in its line without stopping the others. Re-running is safe: the
// idempotency tag of each credit turns repeats into ALREADY_CREDITED.
func (s *SellerShareService) ChargeSellerShare(ctx context.Context, invoiceID uuid.UUID) (*SellerShareReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "seller_share", "charge")
	defer span.End()

	telemetry.SetAttributes(span, "invoice_id", invoiceID.String())

	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !inv.IsPaid() {
		err := shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Seller share can only be charged for a paid invoice, invoice is %s", inv.Status))
		telemetry.RecordError(span, err)
		return nil, err
	}

	settings, err := s.settings.GetFinancialSettings(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load financial settings: %w", err)
	}
	if settings == nil {
		err := shared.NewDomainError(shared.CodeInvalidState, "Financial settings are not configured")
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := &SellerShareReport{InvoiceID: inv.ID, Lines: make([]SellerShareLine, 0)}

	sellers, itemsBySeller, err := s.groupItemsBySeller(ctx, inv)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("seller_share", nil), func(c context.Context) {
		for _, sellerID := range sellers {
			line := s.chargeSeller(c, inv, sellerID, itemsBySeller[sellerID], *settings)
			s.metrics.RecordSellerShare(c, string(line.Outcome))
			report.Lines = append(report.Lines, line)
		}
	})

	telemetry.SetAttributes(span,
		"sellers", len(report.Lines),
		"credited", report.Count(SellerShareCredited),
		"failed", report.Count(SellerShareFailed),
	)
	telemetry.SetOK(span)

	s.logger.Info("seller share distributed",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int("sellers", len(report.Lines)),
		zap.Int("credited", report.Count(SellerShareCredited)),
		zap.Int("skipped", report.Count(SellerShareSkipped)),
		zap.Int("already_credited", report.Count(SellerShareAlreadyCredited)),
		zap.Int("failed", report.Count(SellerShareFailed)),
	)
	return report, nil
}

// groupItemsBySeller groups product lines by seller, in order of first appearance.
// Products without a seller are left out.
func (s *SellerShareService) groupItemsBySeller(ctx context.Context, inv *finance.Invoice) ([]uuid.UUID, map[uuid.UUID][]finance.InvoiceItem, error) {
	items := inv.ProductItems()
	if len(items) == 0 {
		return nil, nil, nil
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if !seen[*item.ReferenceID] {
			seen[*item.ReferenceID] = true
			productIDs = append(productIDs, *item.ReferenceID)
		}
	}

	sellerByProduct, err := s.products.GetSellerIDs(ctx, productIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve product sellers: %w", err)
	}

	sellers := make([]uuid.UUID, 0)
	grouped := make(map[uuid.UUID][]finance.InvoiceItem)
	for _, item := range items {
		sellerID, ok := sellerByProduct[*item.ReferenceID]
		if !ok || sellerID == uuid.Nil {
			s.logger.Debug("product has no seller, skipping item",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("product_id", item.ReferenceID.String()),
			)
			continue
		}
		if _, exists := grouped[sellerID]; !exists {
			sellers = append(sellers, sellerID)
		}
		grouped[sellerID] = append(grouped[sellerID], item)
	}
	return sellers, grouped, nil
}

func (s *SellerShareService) chargeSeller(
	ctx context.Context,
	inv *finance.Invoice,
	sellerID uuid.UUID,
	items []finance.InvoiceItem,
	settings finance.FinancialSettings,
) SellerShareLine {
	line := SellerShareLine{SellerID: sellerID}

	profile, err := s.profiles.GetByUserID(ctx, sellerID)
	if err != nil {
		return s.failLine(inv, line, fmt.Errorf("failed to load seller profile: %w", err))
	}
	var override *decimal.Decimal
	if profile != nil {
		override = profile.SellerSharePercentageOverride
	}

	share := finance.CalculateSellerShare(finance.SellerShareInput{
		Items:                   items,
		OverrideSharePercentage: override,
		Settings:                settings,
	})
	line.TotalAmount = share.TotalAmount
	line.SharePercentage = share.SharePercentage
	line.SellerShare = share.SellerShare
	line.PlatformCommission = share.PlatformCommission
	if share.Skipped {
		line.Outcome = SellerShareSkipped
		line.Reason = string(share.SkipReason)
		return line
	}

	credit, err := s.wallets.Credit(ctx, WalletCommand{
		Owner:           finance.SellerOwner(sellerID),
		Currency:        inv.Currency,
		Amount:          share.SellerShare,
		ReferencePrefix: finance.ReferencePrefixSellerShare,
		Description:     fmt.Sprintf("Seller share of invoice %s", inv.InvoiceNumber),
		IdempotencyTag:  finance.SellerShareTag(sellerID, inv.ID),
		InvoiceID:       &inv.ID,
	})
	if err != nil {
		return s.failLine(inv, line, err)
	}

	txID := credit.Transaction.ID
	line.WalletTransactionID = &txID
	if credit.AlreadyProcessed {
		line.Outcome = SellerShareAlreadyCredited
	} else {
		line.Outcome = SellerShareCredited
	}
	return line
}

func (s *SellerShareService) failLine(inv *finance.Invoice, line SellerShareLine, err error) SellerShareLine {
	s.logger.Error("failed to credit seller share",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("seller_id", line.SellerID.String()),
		zap.Error(err),
	)
	line.Outcome = SellerShareFailed
	line.Reason = err.Error()
	return line
}
