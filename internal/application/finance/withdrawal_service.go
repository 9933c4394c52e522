package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/finance/acl"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopledger/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateWithdrawalRequest carries a new withdrawal request.
// PartyID is the seller id for SELLER_REVENUE and the user id for WALLET.
type CreateWithdrawalRequest struct {
	Type        finance.WithdrawalType
	PartyID     uuid.UUID
	Amount      decimal.Decimal
	Currency    valueobject.Currency
	Destination finance.PayoutDestination
	Description string
}

// ProcessWithdrawalResult is the outcome of processing a request.
// Deferred is set when a seller payout waits on a gateway transaction.
type ProcessWithdrawalResult struct {
	Request             *finance.WithdrawalRequest
	Deferred            bool
	PayoutInvoiceID     *uuid.UUID
	PayoutTrackingCode  string
	WalletTransactionID *uuid.UUID
}

// WithdrawalService runs the withdrawal approval workflow
type WithdrawalService struct {
	scope                 TransactionScope
	withdrawalRepo        finance.WithdrawalRequestRepository
	walletRepo            finance.WalletAccountRepository
	revenue               acl.SellerRevenueQuery
	withdrawn             acl.SellerWithdrawalQuery
	paymentSettings       acl.PaymentSettingsQuery
	eventPublisher        shared.EventPublisher
	retrier               conflictRetrier
	invoiceNumberAttempts int
	metrics               *telemetry.LedgerMetrics
	logger                *zap.Logger
}

// WithdrawalServiceConfig holds the dependencies of WithdrawalService
type WithdrawalServiceConfig struct {
	Scope                 TransactionScope
	WithdrawalRepo        finance.WithdrawalRequestRepository
	WalletRepo            finance.WalletAccountRepository
	Revenue               acl.SellerRevenueQuery
	Withdrawn             acl.SellerWithdrawalQuery
	PaymentSettings       acl.PaymentSettingsQuery
	EventPublisher        shared.EventPublisher
	RetryPolicy           RetryPolicy
	InvoiceNumberAttempts int
	Metrics               *telemetry.LedgerMetrics
	Logger                *zap.Logger
}

// NewWithdrawalService creates a new WithdrawalService
func NewWithdrawalService(cfg WithdrawalServiceConfig) *WithdrawalService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := cfg.InvoiceNumberAttempts
	if attempts <= 0 {
		attempts = DefaultInvoiceNumberAttempts
	}
	return &WithdrawalService{
		scope:                 cfg.Scope,
		withdrawalRepo:        cfg.WithdrawalRepo,
		walletRepo:            cfg.WalletRepo,
		revenue:               cfg.Revenue,
		withdrawn:             cfg.Withdrawn,
		paymentSettings:       cfg.PaymentSettings,
		eventPublisher:        cfg.EventPublisher,
		retrier:               newConflictRetrier(cfg.RetryPolicy, cfg.Metrics, logger),
		invoiceNumberAttempts: attempts,
		metrics:               cfg.Metrics,
		logger:                logger,
	}
}

// GetRequest returns a withdrawal request
func (s *WithdrawalService) GetRequest(ctx context.Context, id uuid.UUID) (*finance.WithdrawalRequest, error) {
	return s.withdrawalRepo.FindByID(ctx, id)
}

// ListRequests lists the withdrawal requests of a seller or user
func (s *WithdrawalService) ListRequests(
	ctx context.Context,
	owner finance.Owner,
	filter finance.WithdrawalRequestFilter,
) (shared.Paginated[finance.WithdrawalRequest], error) {
	filter.Filter = filter.Filter.Normalize()
	requests, total, err := s.withdrawalRepo.FindByOwner(ctx, owner, filter)
	if err != nil {
		return shared.Paginated[finance.WithdrawalRequest]{}, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	return shared.NewPaginated(requests, total, filter.Page, filter.PageSize), nil
}

// CreateRequest validates availability and records a pending withdrawal request
func (s *WithdrawalService) CreateRequest(ctx context.Context, req CreateWithdrawalRequest) (*finance.WithdrawalRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "withdrawal", "create")
	defer span.End()

	telemetry.SetAttributes(span,
		"withdrawal_type", string(req.Type),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	amount, err := valueobject.NewMoney(req.Amount, req.Currency.OrDefault())
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeValidation, err.Error())
	}
	wr, err := finance.NewWithdrawalRequest(req.Type, req.PartyID, amount, req.Destination, req.Description)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	switch wr.Type {
	case finance.WithdrawalTypeWallet:
		err = s.ensureWalletAvailable(ctx, wr.Owner, wr.Currency, wr.Amount)
	case finance.WithdrawalTypeSellerRevenue:
		err = s.ensureRevenueAvailable(ctx, wr.Owner.ID, wr.Amount)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	pending := &pendingEvents{}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.WithdrawalRepo().Create(ctx, wr); err != nil {
			return fmt.Errorf("failed to create withdrawal request: %w", err)
		}
		pending.collect(wr)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, pending)
	s.metrics.RecordWithdrawal(ctx, string(wr.Type), string(wr.Status))
	telemetry.SetOK(span)

	s.logger.Info("withdrawal requested",
		zap.String("withdrawal_id", wr.ID.String()),
		zap.String("type", string(wr.Type)),
		zap.String("owner", wr.Owner.String()),
		zap.String("amount", wr.Amount.String()),
	)
	return wr, nil
}

// ensureWalletAvailable checks the user's wallet is unlocked and covers amount
func (s *WithdrawalService) ensureWalletAvailable(ctx context.Context, owner finance.Owner, currency valueobject.Currency, amount decimal.Decimal) error {
	account, err := s.walletRepo.FindByOwner(ctx, owner, currency)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError(shared.CodeInsufficientBalance, "Wallet has no balance to withdraw")
		}
		return fmt.Errorf("failed to load wallet account: %w", err)
	}
	if account.IsLocked {
		return shared.NewDomainError(shared.CodeAccountLocked, fmt.Sprintf("Wallet account is locked: %s", account.LockReason))
	}
	if account.Balance().LessThan(amount) {
		return shared.NewDomainError(shared.CodeInsufficientBalance,
			fmt.Sprintf("Insufficient wallet balance: available %s, requested %s",
				account.Balance().StringFixed(valueobject.AmountScale), amount.StringFixed(valueobject.AmountScale)))
	}
	return nil
}

// ensureRevenueAvailable checks revenue to date minus processed withdrawals covers amount
func (s *WithdrawalService) ensureRevenueAvailable(ctx context.Context, sellerID uuid.UUID, amount decimal.Decimal) error {
	revenue, err := s.revenue.GetTotalRevenue(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("failed to load seller revenue: %w", err)
	}
	withdrawn, err := s.withdrawn.GetTotalWithdrawn(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("failed to load seller withdrawals: %w", err)
	}
	available := revenue.Sub(withdrawn)
	if available.LessThan(amount) {
		return shared.NewDomainError(shared.CodeInsufficientBalance,
			fmt.Sprintf("Insufficient seller revenue: available %s, requested %s",
				available.StringFixed(valueobject.AmountScale), amount.StringFixed(valueobject.AmountScale)))
	}
	return nil
}

// Approve moves a pending request to approved
func (s *WithdrawalService) Approve(ctx context.Context, id, adminID uuid.UUID, notes string) (*finance.WithdrawalRequest, error) {
	return s.transition(ctx, id, "approve", func(wr *finance.WithdrawalRequest) error {
		return wr.Approve(adminID, notes)
	})
}

// Reject moves a pending or approved request to rejected
func (s *WithdrawalService) Reject(ctx context.Context, id, adminID uuid.UUID, notes string) (*finance.WithdrawalRequest, error) {
	return s.transition(ctx, id, "reject", func(wr *finance.WithdrawalRequest) error {
		if wr.IsDeferred() {
			return shared.NewDomainError(shared.CodeInvalidState, "Cannot reject a withdrawal whose payout is in flight")
		}
		return wr.Reject(adminID, notes)
	})
}

func (s *WithdrawalService) transition(
	ctx context.Context,
	id uuid.UUID,
	operation string,
	mutate func(*finance.WithdrawalRequest) error,
) (*finance.WithdrawalRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "withdrawal", operation)
	defer span.End()

	var result *finance.WithdrawalRequest
	pending := &pendingEvents{}
	err := s.retrier.Do(ctx, "withdrawal."+operation, func() error {
		pending.reset()
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			wr, err := repos.WithdrawalRepo().FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := mutate(wr); err != nil {
				return err
			}
			if err := repos.WithdrawalRepo().SaveWithLock(ctx, wr); err != nil {
				return fmt.Errorf("failed to save withdrawal request: %w", err)
			}
			pending.collect(wr)
			result = wr
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, pending)
	s.metrics.RecordWithdrawal(ctx, string(result.Type), string(result.Status))
	telemetry.SetOK(span)

	s.logger.Info("withdrawal request updated",
		zap.String("withdrawal_id", result.ID.String()),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// Process pays out an approved request.
//
// WALLET requests debit the user's wallet with the idempotent reference
// WITHDRAWAL_REQUEST:<id> and become processed in the same transaction.
// SELLER_REVENUE requests touch no wallet. When the online gateway is active
// a platform payout invoice with a pending gateway transaction is created and
// the request stays approved until that transaction is verified; otherwise the
// request is processed directly.
func (s *WithdrawalService) Process(ctx context.Context, id, adminID uuid.UUID) (*ProcessWithdrawalResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "withdrawal", "process")
	defer span.End()

	telemetry.SetAttributes(span, "withdrawal_id", id.String())

	var result *ProcessWithdrawalResult
	pending := &pendingEvents{}
	var opErr error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("withdrawal_process", nil), func(c context.Context) {
		opErr = s.retrier.Do(c, "withdrawal.process", func() error {
			pending.reset()
			return s.scope.Execute(c, func(repos TransactionalRepositories) error {
				r, err := s.processInScope(c, repos, id, adminID, pending)
				if err != nil {
					return err
				}
				result = r
				return nil
			})
		})
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}

	publishEvents(ctx, s.eventPublisher, s.logger, pending)
	s.metrics.RecordWithdrawal(ctx, string(result.Request.Type), string(result.Request.Status))
	telemetry.SetAttributes(span, "deferred", result.Deferred)
	telemetry.SetOK(span)

	s.logger.Info("withdrawal processed",
		zap.String("withdrawal_id", id.String()),
		zap.String("type", string(result.Request.Type)),
		zap.String("status", string(result.Request.Status)),
		zap.Bool("deferred", result.Deferred),
	)
	return result, nil
}

func (s *WithdrawalService) processInScope(
	ctx context.Context,
	repos TransactionalRepositories,
	id, adminID uuid.UUID,
	pending *pendingEvents,
) (*ProcessWithdrawalResult, error) {
	wr, err := repos.WithdrawalRepo().FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if wr.IsDeferred() {
		return &ProcessWithdrawalResult{Request: wr, Deferred: true, PayoutInvoiceID: wr.InvoiceID}, nil
	}
	if wr.Status != finance.WithdrawalStatusApproved {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot process withdrawal request in %s status", wr.Status))
	}

	result := &ProcessWithdrawalResult{Request: wr}
	switch wr.Type {
	case finance.WithdrawalTypeWallet:
		cmd, err := prepareWalletCommand(WalletCommand{
			Owner:          wr.Owner,
			Currency:       wr.Currency,
			Amount:         wr.Amount,
			Reference:      wr.Reference(),
			Description:    fmt.Sprintf("Withdrawal %s", wr.ID),
			IdempotencyTag: wr.Reference(),
		})
		if err != nil {
			return nil, err
		}
		movement, err := applyWalletMovement(ctx, repos.WalletRepo(), finance.WalletTransactionTypeDebit, cmd, pending)
		if err != nil {
			return nil, err
		}
		txID := movement.Transaction.ID
		if err := wr.Process(adminID, &txID); err != nil {
			return nil, err
		}
		result.WalletTransactionID = &txID

	case finance.WithdrawalTypeSellerRevenue:
		if err := s.ensureRevenueAvailable(ctx, wr.Owner.ID, wr.Amount); err != nil {
			return nil, err
		}
		settings, err := s.paymentSettings.GetPaymentSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load payment settings: %w", err)
		}
		if settings != nil && settings.IsActive {
			inv, tracking, err := s.createPayoutInvoice(ctx, repos.InvoiceRepo(), wr, settings.GatewayName, pending)
			if err != nil {
				return nil, err
			}
			if err := wr.AttachPayoutInvoice(inv.ID); err != nil {
				return nil, err
			}
			result.Deferred = true
			result.PayoutInvoiceID = &inv.ID
			result.PayoutTrackingCode = tracking
		} else if err := wr.Process(adminID, nil); err != nil {
			return nil, err
		}
	}

	if err := repos.WithdrawalRepo().SaveWithLock(ctx, wr); err != nil {
		return nil, fmt.Errorf("failed to save withdrawal request: %w", err)
	}
	pending.collect(wr)
	return result, nil
}

// createPayoutInvoice creates the platform-owned invoice whose gateway transaction pays the seller
func (s *WithdrawalService) createPayoutInvoice(
	ctx context.Context,
	repo finance.InvoiceRepository,
	wr *finance.WithdrawalRequest,
	gatewayName string,
	pending *pendingEvents,
) (*finance.Invoice, string, error) {
	number, err := nextInvoiceNumber(ctx, repo, s.invoiceNumberAttempts)
	if err != nil {
		return nil, "", err
	}
	inv, err := buildInvoice(number, CreateInvoiceRequest{
		Title:             "Seller revenue withdrawal",
		Description:       fmt.Sprintf("Payout of withdrawal request %s", wr.ID),
		Currency:          wr.Currency,
		Owner:             finance.PlatformOwner(),
		ExternalReference: wr.Reference(),
		Items: []finance.InvoiceItemInput{{
			Name:      "Seller revenue payout",
			Type:      finance.InvoiceItemTypeMiscellaneous,
			Quantity:  1,
			UnitPrice: wr.Amount,
		}},
	})
	if err != nil {
		return nil, "", err
	}

	tracking := finance.GenerateReference(finance.ReferencePrefixWithdrawal, time.Now())
	if _, err := inv.AddTransaction(finance.AddTransactionInput{
		Amount:      wr.Amount,
		Method:      finance.PaymentMethodOnlineGateway,
		Status:      finance.TransactionStatusPending,
		Reference:   tracking,
		GatewayName: gatewayName,
		Description: fmt.Sprintf("Seller payout for withdrawal %s", wr.ID),
		Metadata:    wr.Reference(),
	}); err != nil {
		return nil, "", err
	}
	if err := repo.Create(ctx, inv); err != nil {
		return nil, "", fmt.Errorf("failed to create payout invoice: %w", err)
	}
	pending.collect(inv)
	return inv, tracking, nil
}

// CompleteDeferred finishes a seller payout once its gateway transaction is verified.
// payoutInvoiceID must be the invoice linked when the payout was deferred. The request
// is processed with the id of the admin who approved it. A request that is no longer
// approved is left untouched.
func (s *WithdrawalService) CompleteDeferred(ctx context.Context, id, payoutInvoiceID uuid.UUID) (*finance.WithdrawalRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "withdrawal", "complete_deferred")
	defer span.End()

	telemetry.SetAttributes(span,
		"withdrawal_id", id.String(),
		"invoice_id", payoutInvoiceID.String(),
	)

	var result *finance.WithdrawalRequest
	completed := false
	pending := &pendingEvents{}
	err := s.retrier.Do(ctx, "withdrawal.complete_deferred", func() error {
		pending.reset()
		completed = false
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			wr, err := repos.WithdrawalRepo().FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			result = wr
			if wr.Status != finance.WithdrawalStatusApproved {
				return nil
			}
			if wr.InvoiceID == nil || *wr.InvoiceID != payoutInvoiceID {
				return shared.NewDomainError(shared.CodeInvalidState,
					fmt.Sprintf("Invoice %s is not the payout invoice of withdrawal %s", payoutInvoiceID, wr.ID))
			}
			if wr.ApprovedBy == nil {
				return shared.NewDomainError(shared.CodeInvalidState, "Approved withdrawal has no approving admin")
			}
			if err := wr.Process(*wr.ApprovedBy, nil); err != nil {
				return err
			}
			if err := repos.WithdrawalRepo().SaveWithLock(ctx, wr); err != nil {
				return fmt.Errorf("failed to save withdrawal request: %w", err)
			}
			pending.collect(wr)
			completed = true
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !completed {
		s.logger.Info("deferred withdrawal no longer approved, nothing to complete",
			zap.String("withdrawal_id", id.String()),
			zap.String("status", string(result.Status)),
		)
		return result, nil
	}

	publishEvents(ctx, s.eventPublisher, s.logger, pending)
	s.metrics.RecordWithdrawal(ctx, string(result.Type), string(result.Status))
	telemetry.SetOK(span)

	s.logger.Info("deferred withdrawal completed",
		zap.String("withdrawal_id", id.String()),
		zap.String("processed_by", result.ApprovedBy.String()),
	)
	return result, nil
}
