package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// VerificationOutcome classifies a gateway callback
type VerificationOutcome string

const (
	VerificationSucceeded        VerificationOutcome = "SUCCEEDED"
	VerificationAlreadyProcessed VerificationOutcome = "ALREADY_PROCESSED"
	VerificationDuplicate        VerificationOutcome = "DUPLICATE_CALLBACK"
)

const gatewayCodeTagPrefix = "GATEWAY_TX_"

// VerifyPaymentRequest is a gateway confirmation of a pending transaction
type VerifyPaymentRequest struct {
	TrackingNumber  string
	TransactionCode string
	PaidAmount      decimal.Decimal
}

// PaymentVerificationResult is the outcome of VerifyPaymentTransaction
type PaymentVerificationResult struct {
	Outcome         VerificationOutcome         `json:"outcome"`
	InvoiceID       uuid.UUID                   `json:"invoice_id,omitempty"`
	TransactionID   uuid.UUID                   `json:"transaction_id,omitempty"`
	ConfirmedAmount decimal.Decimal             `json:"confirmed_amount"`
	InvoiceStatus   finance.InvoiceStatus       `json:"invoice_status,omitempty"`
	Transaction     *finance.PaymentTransaction `json:"-"`
}

// DeferredWithdrawalCompleter finishes seller payouts whose gateway transaction was verified
type DeferredWithdrawalCompleter interface {
	CompleteDeferred(ctx context.Context, id, payoutInvoiceID uuid.UUID) (*finance.WithdrawalRequest, error)
}

// PaymentVerificationService confirms gateway payments against pending invoice transactions
type PaymentVerificationService struct {
	scope          TransactionScope
	wallets        *WalletService
	withdrawals    DeferredWithdrawalCompleter
	callbacks      shared.IdempotencyStore
	callbackTTL    time.Duration
	eventPublisher shared.EventPublisher
	retrier        conflictRetrier
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
}

// PaymentVerificationServiceConfig holds the dependencies of PaymentVerificationService
type PaymentVerificationServiceConfig struct {
	Scope          TransactionScope
	Wallets        *WalletService
	Withdrawals    DeferredWithdrawalCompleter
	CallbackStore  shared.IdempotencyStore
	CallbackTTL    time.Duration
	EventPublisher shared.EventPublisher
	RetryPolicy    RetryPolicy
	Metrics        *telemetry.LedgerMetrics
	Logger         *zap.Logger
}

// NewPaymentVerificationService creates a new PaymentVerificationService
func NewPaymentVerificationService(cfg PaymentVerificationServiceConfig) *PaymentVerificationService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CallbackTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	return &PaymentVerificationService{
		scope:          cfg.Scope,
		wallets:        cfg.Wallets,
		withdrawals:    cfg.Withdrawals,
		callbacks:      cfg.CallbackStore,
		callbackTTL:    ttl,
		eventPublisher: cfg.EventPublisher,
		retrier:        newConflictRetrier(cfg.RetryPolicy, cfg.Metrics, logger),
		metrics:        cfg.Metrics,
		logger:         logger,
	}
}

// callbackKey identifies one gateway delivery
func callbackKey(req VerifyPaymentRequest) string {
	return fmt.Sprintf("payment:%s:%s",
		cases.Fold().String(strings.TrimSpace(req.TrackingNumber)),
		strings.TrimSpace(req.TransactionCode))
}

// VerifyPaymentTransaction marks the pending transaction with the given tracking
// number as succeeded. The confirmed amount is the gateway amount, clamped to
// the outstanding amount when it is not positive or exceeds it. After commit a
// paid wallet top-up credits the user's wallet and a paid withdrawal payout
// completes its withdrawal request; failures there are logged, not returned.
func (s *PaymentVerificationService) VerifyPaymentTransaction(ctx context.Context, req VerifyPaymentRequest) (*PaymentVerificationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "verify")
	defer span.End()

	telemetry.SetAttributes(span,
		"tracking_number", req.TrackingNumber,
		telemetry.SpanAttrAmount, req.PaidAmount.String(),
	)

	if strings.TrimSpace(req.TrackingNumber) == "" {
		err := shared.NewDomainError(shared.CodeValidation, "Tracking number is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	key := callbackKey(req)
	fresh, err := s.callbacks.MarkProcessed(ctx, key, s.callbackTTL)
	if err != nil {
		// The transaction status check below still guards against double processing
		s.logger.Warn("callback idempotency store unavailable",
			zap.String("key", key),
			zap.Error(err),
		)
		fresh = true
	}
	if !fresh {
		s.logger.Info("duplicate payment callback ignored",
			zap.String("tracking_number", req.TrackingNumber),
			zap.String("transaction_code", req.TransactionCode),
		)
		s.metrics.RecordPaymentVerification(ctx, string(VerificationDuplicate))
		return &PaymentVerificationResult{Outcome: VerificationDuplicate}, nil
	}

	var (
		invoice *finance.Invoice
		result  *PaymentVerificationResult
	)
	pending := &pendingEvents{}
	err = s.retrier.Do(ctx, "payment.verify", func() error {
		pending.reset()
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			inv, r, err := s.confirmTransaction(ctx, repos.InvoiceRepo(), req)
			if err != nil {
				return err
			}
			if r.Outcome == VerificationSucceeded {
				pending.collect(inv)
			}
			invoice, result = inv, r
			return nil
		})
	})
	if err != nil {
		if relErr := s.callbacks.Release(ctx, key); relErr != nil {
			s.logger.Warn("failed to release callback key", zap.String("key", key), zap.Error(relErr))
		}
		s.logger.Error("payment verification failed",
			zap.String("tracking_number", req.TrackingNumber),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordPaymentVerification(ctx, string(result.Outcome))
	if result.Outcome == VerificationAlreadyProcessed {
		s.logger.Info("payment transaction already verified",
			zap.String("tracking_number", req.TrackingNumber),
			zap.String("invoice_id", invoice.ID.String()),
		)
		telemetry.SetOK(span)
		return result, nil
	}

	publishEvents(ctx, s.eventPublisher, s.logger, pending)
	s.logger.Info("payment transaction verified",
		zap.String("tracking_number", req.TrackingNumber),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("confirmed_amount", result.ConfirmedAmount.String()),
		zap.String("invoice_status", string(invoice.Status)),
	)

	s.afterPayment(ctx, invoice, result.Transaction)
	telemetry.SetOK(span)
	return result, nil
}

func (s *PaymentVerificationService) confirmTransaction(
	ctx context.Context,
	repo finance.InvoiceRepository,
	req VerifyPaymentRequest,
) (*finance.Invoice, *PaymentVerificationResult, error) {
	inv, err := repo.FindByTransactionReference(ctx, req.TrackingNumber)
	if err != nil {
		return nil, nil, err
	}
	tx := inv.FindTransactionByReference(req.TrackingNumber)
	if tx == nil {
		return nil, nil, shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("No transaction with tracking number %s", req.TrackingNumber))
	}

	result := &PaymentVerificationResult{
		InvoiceID:     inv.ID,
		TransactionID: tx.ID,
	}
	if tx.IsSucceeded() {
		result.Outcome = VerificationAlreadyProcessed
		result.ConfirmedAmount = tx.Amount
		result.InvoiceStatus = inv.Status
		txCopy := *tx
		result.Transaction = &txCopy
		return inv, result, nil
	}

	outstanding := inv.OutstandingAmount()
	if !outstanding.IsPositive() {
		return nil, nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Invoice %s has no outstanding amount", inv.InvoiceNumber))
	}
	confirmed := req.PaidAmount
	if !confirmed.IsPositive() || confirmed.GreaterThan(outstanding) {
		confirmed = outstanding
	}

	metadata := tx.Metadata
	if code := strings.TrimSpace(req.TransactionCode); code != "" {
		metadata = finance.AppendTag(metadata, gatewayCodeTagPrefix+code)
	}
	now := time.Now()
	updated, err := inv.UpdateTransaction(tx.ID, finance.UpdateTransactionInput{
		Status:       finance.TransactionStatusSucceeded,
		Metadata:     &metadata,
		OccurredAt:   &now,
		ActualAmount: &confirmed,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := repo.SaveWithLock(ctx, inv); err != nil {
		return nil, nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	txCopy := *updated
	result.Outcome = VerificationSucceeded
	result.ConfirmedAmount = confirmed
	result.InvoiceStatus = inv.Status
	result.Transaction = &txCopy
	return inv, result, nil
}

// afterPayment runs the post-commit side effects keyed on the invoice's external reference
func (s *PaymentVerificationService) afterPayment(ctx context.Context, inv *finance.Invoice, tx *finance.PaymentTransaction) {
	switch {
	case inv.IsWalletCharge():
		s.creditWalletCharge(ctx, inv, tx)
	default:
		if withdrawalID, ok := inv.WithdrawalRequestID(); ok {
			s.completeWithdrawal(ctx, inv, withdrawalID)
		}
	}
}

func (s *PaymentVerificationService) creditWalletCharge(ctx context.Context, inv *finance.Invoice, tx *finance.PaymentTransaction) {
	logger := s.logger.With(
		zap.String("invoice_id", inv.ID.String()),
		zap.String("payment_transaction_id", tx.ID.String()),
	)
	if !inv.IsPaid() {
		logger.Info("wallet top-up invoice not fully paid yet, wallet not credited",
			zap.String("outstanding", inv.OutstandingAmount().String()),
		)
		return
	}
	if !inv.Owner.IsUser() {
		logger.Error("wallet top-up invoice is not owned by a user", zap.String("owner", inv.Owner.String()))
		return
	}

	txID := tx.ID
	credit, err := s.wallets.Credit(ctx, WalletCommand{
		Owner:                inv.Owner,
		Currency:             inv.Currency,
		Amount:               inv.GrandTotal(),
		ReferencePrefix:      finance.ReferencePrefixWalletDeposit,
		Description:          fmt.Sprintf("Wallet top-up via invoice %s", inv.InvoiceNumber),
		IdempotencyTag:       finance.WalletChargeTag(tx.ID),
		InvoiceID:            &inv.ID,
		PaymentTransactionID: &txID,
	})
	if err != nil {
		logger.Error("failed to credit wallet for paid top-up, manual reconciliation required",
			zap.String("owner", inv.Owner.String()),
			zap.String("amount", inv.GrandTotal().String()),
			zap.Error(err),
		)
		return
	}
	logger.Info("wallet credited for top-up",
		zap.String("wallet_transaction_id", credit.Transaction.ID.String()),
		zap.Bool("already_processed", credit.AlreadyProcessed),
	)
}

func (s *PaymentVerificationService) completeWithdrawal(ctx context.Context, inv *finance.Invoice, withdrawalID uuid.UUID) {
	if s.withdrawals == nil {
		return
	}
	if !inv.IsPaid() {
		s.logger.Info("payout invoice not fully paid yet, withdrawal left approved",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("withdrawal_id", withdrawalID.String()),
			zap.String("outstanding", inv.OutstandingAmount().String()),
		)
		return
	}
	if _, err := s.withdrawals.CompleteDeferred(ctx, withdrawalID, inv.ID); err != nil {
		s.logger.Error("failed to complete deferred withdrawal after payout",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("withdrawal_id", withdrawalID.String()),
			zap.Error(err),
		)
	}
}
