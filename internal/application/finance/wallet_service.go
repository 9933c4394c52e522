package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/domain/shared/valueobject"
	"github.com/shopledger/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WalletCommand describes one credit or debit against an owner's wallet.
// The wallet is created on first use.
type WalletCommand struct {
	Owner    finance.Owner
	Currency valueobject.Currency // Empty means the default currency
	Amount   decimal.Decimal

	// Reference is generated from ReferencePrefix when empty
	Reference       string
	ReferencePrefix string

	Description string
	Metadata    string

	// IdempotencyTag is appended to the metadata. A succeeded transaction already
	// carrying the tag (and InvoiceID, when set) turns the command into a no-op.
	IdempotencyTag string

	InvoiceID            *uuid.UUID
	PaymentTransactionID *uuid.UUID
	Status               finance.TransactionStatus
	OccurredAt           time.Time
	AllowOverdraft       bool
}

// WalletMovementResult is the outcome of a credit or debit
type WalletMovementResult struct {
	AccountID        uuid.UUID
	Currency         valueobject.Currency
	Transaction      finance.WalletTransaction
	Balance          decimal.Decimal
	AlreadyProcessed bool
}

// WalletService records wallet movements and manages account locks
type WalletService struct {
	scope          TransactionScope
	walletRepo     finance.WalletAccountRepository
	eventPublisher shared.EventPublisher
	retrier        conflictRetrier
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
}

// WalletServiceConfig holds the dependencies of WalletService
type WalletServiceConfig struct {
	Scope          TransactionScope
	WalletRepo     finance.WalletAccountRepository
	EventPublisher shared.EventPublisher
	RetryPolicy    RetryPolicy
	Metrics        *telemetry.LedgerMetrics
	Logger         *zap.Logger
}

// NewWalletService creates a new WalletService
func NewWalletService(cfg WalletServiceConfig) *WalletService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletService{
		scope:          cfg.Scope,
		walletRepo:     cfg.WalletRepo,
		eventPublisher: cfg.EventPublisher,
		retrier:        newConflictRetrier(cfg.RetryPolicy, cfg.Metrics, logger),
		metrics:        cfg.Metrics,
		logger:         logger,
	}
}

// Credit adds value to the owner's wallet
func (s *WalletService) Credit(ctx context.Context, cmd WalletCommand) (*WalletMovementResult, error) {
	return s.move(ctx, finance.WalletTransactionTypeCredit, cmd)
}

// Debit removes value from the owner's wallet
func (s *WalletService) Debit(ctx context.Context, cmd WalletCommand) (*WalletMovementResult, error) {
	return s.move(ctx, finance.WalletTransactionTypeDebit, cmd)
}

func (s *WalletService) move(ctx context.Context, txType finance.WalletTransactionType, cmd WalletCommand) (*WalletMovementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "wallet", strings.ToLower(string(txType)))
	defer span.End()

	telemetry.SetAttributes(span,
		"owner", cmd.Owner.String(),
		telemetry.SpanAttrAmount, cmd.Amount.String(),
		"idempotency_tag", cmd.IdempotencyTag,
	)

	cmd, err := prepareWalletCommand(cmd)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *WalletMovementResult
	pending := &pendingEvents{}
	operation := "wallet." + strings.ToLower(string(txType))
	err = s.retrier.Do(ctx, operation, func() error {
		pending.reset()
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := applyWalletMovement(ctx, repos.WalletRepo(), txType, cmd, pending)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, pending)

	if result.AlreadyProcessed {
		s.logger.Info("wallet movement already recorded",
			zap.String("owner", cmd.Owner.String()),
			zap.String("idempotency_tag", cmd.IdempotencyTag),
			zap.String("wallet_transaction_id", result.Transaction.ID.String()),
		)
	} else {
		s.metrics.RecordWalletMovement(ctx, string(txType), string(result.Currency), result.Transaction.Amount)
		s.logger.Info("wallet movement recorded",
			zap.String("type", string(txType)),
			zap.String("owner", cmd.Owner.String()),
			zap.String("reference", result.Transaction.Reference),
			zap.String("amount", result.Transaction.Amount.String()),
			zap.String("balance", result.Balance.String()),
		)
	}
	telemetry.SetOK(span)

	return result, nil
}

// prepareWalletCommand validates the command and fills its defaults
func prepareWalletCommand(cmd WalletCommand) (WalletCommand, error) {
	if err := cmd.Owner.Validate(); err != nil {
		return cmd, err
	}
	if cmd.Owner.IsPlatform() {
		return cmd, shared.NewDomainError(shared.CodeValidation, "Platform cannot own a wallet account")
	}
	if !cmd.Amount.IsPositive() {
		return cmd, shared.NewDomainError(shared.CodeInvalidAmount, "Wallet transaction amount must be positive")
	}
	cmd.Currency = cmd.Currency.OrDefault()
	if strings.TrimSpace(cmd.Reference) == "" {
		prefix := cmd.ReferencePrefix
		if prefix == "" {
			prefix = finance.ReferencePrefixWalletDeposit
		}
		cmd.Reference = finance.GenerateReference(prefix, time.Now())
	}
	cmd.Metadata = finance.AppendTag(cmd.Metadata, cmd.IdempotencyTag)
	return cmd, nil
}

// applyWalletMovement loads (or opens) the wallet and records one movement inside
// the caller's unit of work. The command must already be prepared.
func applyWalletMovement(
	ctx context.Context,
	repo finance.WalletAccountRepository,
	txType finance.WalletTransactionType,
	cmd WalletCommand,
	pending *pendingEvents,
) (*WalletMovementResult, error) {
	account, isNew, err := loadOrOpenWallet(ctx, repo, cmd.Owner, cmd.Currency)
	if err != nil {
		return nil, err
	}

	if cmd.IdempotencyTag != "" {
		if existing := account.FindSucceededByTag(cmd.InvoiceID, cmd.IdempotencyTag); existing != nil {
			return &WalletMovementResult{
				AccountID:        account.ID,
				Currency:         account.Currency,
				Transaction:      *existing,
				Balance:          account.Balance(),
				AlreadyProcessed: true,
			}, nil
		}
	}

	entry := finance.WalletEntry{
		Amount:               cmd.Amount,
		Currency:             cmd.Currency,
		Reference:            cmd.Reference,
		Description:          cmd.Description,
		Metadata:             cmd.Metadata,
		InvoiceID:            cmd.InvoiceID,
		PaymentTransactionID: cmd.PaymentTransactionID,
		Status:               cmd.Status,
		OccurredAt:           cmd.OccurredAt,
		AllowOverdraft:       cmd.AllowOverdraft,
	}

	var tx *finance.WalletTransaction
	if txType == finance.WalletTransactionTypeCredit {
		tx, err = account.Credit(entry)
	} else {
		tx, err = account.Debit(entry)
	}
	if err != nil {
		return nil, err
	}
	result := &WalletMovementResult{
		AccountID:   account.ID,
		Currency:    account.Currency,
		Transaction: *tx,
		Balance:     account.Balance(),
	}

	if isNew {
		err = repo.Create(ctx, account)
	} else {
		err = repo.SaveWithLock(ctx, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save wallet account: %w", err)
	}
	pending.collect(account)

	return result, nil
}

// loadOrOpenWallet returns the owner's wallet, or a new unsaved one when none exists
func loadOrOpenWallet(
	ctx context.Context,
	repo finance.WalletAccountRepository,
	owner finance.Owner,
	currency valueobject.Currency,
) (*finance.WalletAccount, bool, error) {
	account, err := repo.FindByOwner(ctx, owner, currency)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to load wallet account: %w", err)
	}
	account, err = finance.NewWalletAccount(owner, currency)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

// GetAccount returns an owner's wallet in a currency
func (s *WalletService) GetAccount(ctx context.Context, owner finance.Owner, currency valueobject.Currency) (*finance.WalletAccount, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return s.walletRepo.FindByOwner(ctx, owner, currency.OrDefault())
}

// GetBalance returns an owner's balance; a wallet that was never opened has a zero balance
func (s *WalletService) GetBalance(ctx context.Context, owner finance.Owner, currency valueobject.Currency) (valueobject.Money, error) {
	currency = currency.OrDefault()
	account, err := s.GetAccount(ctx, owner, currency)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return valueobject.Zero(currency), nil
		}
		return valueobject.Money{}, err
	}
	return account.GetBalanceMoney(), nil
}

// LockAccount blocks debits on a wallet
func (s *WalletService) LockAccount(ctx context.Context, accountID uuid.UUID, reason string) (*finance.WalletAccount, error) {
	return s.changeLockState(ctx, accountID, "lock", func(account *finance.WalletAccount) error {
		return account.Lock(reason)
	})
}

// UnlockAccount allows debits on a wallet again
func (s *WalletService) UnlockAccount(ctx context.Context, accountID uuid.UUID) (*finance.WalletAccount, error) {
	return s.changeLockState(ctx, accountID, "unlock", func(account *finance.WalletAccount) error {
		return account.Unlock()
	})
}

func (s *WalletService) changeLockState(
	ctx context.Context,
	accountID uuid.UUID,
	operation string,
	mutate func(*finance.WalletAccount) error,
) (*finance.WalletAccount, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "wallet", operation)
	defer span.End()

	var account *finance.WalletAccount
	pending := &pendingEvents{}
	err := s.retrier.Do(ctx, "wallet."+operation, func() error {
		pending.reset()
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			loaded, err := repos.WalletRepo().FindByID(ctx, accountID)
			if err != nil {
				return err
			}
			if err := mutate(loaded); err != nil {
				return err
			}
			if err := repos.WalletRepo().SaveWithLock(ctx, loaded); err != nil {
				return fmt.Errorf("failed to save wallet account: %w", err)
			}
			pending.collect(loaded)
			account = loaded
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, pending)
	s.logger.Info("wallet lock state changed",
		zap.String("account_id", accountID.String()),
		zap.Bool("is_locked", account.IsLocked),
	)
	return account, nil
}
