package finance

import (
	"context"
	"fmt"
	"strings"
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

// DefaultInvoiceNumberAttempts is how many generated numbers are tried before giving up
const DefaultInvoiceNumberAttempts = 5

// CreateInvoiceRequest carries the fields of a new invoice
type CreateInvoiceRequest struct {
	Title             string
	Description       string
	Currency          valueobject.Currency
	Owner             finance.Owner
	DueDate           *time.Time
	Items             []finance.InvoiceItemInput
	TaxAmount         decimal.Decimal
	AdjustmentAmount  decimal.Decimal
	ExternalReference string
	ShippingAddress   *finance.ShippingAddress
}

// SubmitTransactionRequest carries a payment transaction to record on an invoice
type SubmitTransactionRequest struct {
	Amount      decimal.Decimal
	Method      finance.PaymentMethod
	Status      finance.TransactionStatus
	Reference   string
	GatewayName string
	Description string
	Metadata    string
	OccurredAt  time.Time
}

// InvoiceTransactionResult is an invoice together with the transaction just touched
type InvoiceTransactionResult struct {
	Invoice     *finance.Invoice
	Transaction finance.PaymentTransaction
}

// PayInvoiceRequest pays an invoice from the owner's wallet.
// A nil Amount pays the whole outstanding amount.
type PayInvoiceRequest struct {
	Amount      *decimal.Decimal
	Reference   string
	Description string
}

// PayInvoiceResult is the outcome of a wallet payment
type PayInvoiceResult struct {
	Invoice           *finance.Invoice
	Transaction       finance.PaymentTransaction
	WalletTransaction finance.WalletTransaction
	WalletBalance     decimal.Decimal
}

// StartGatewayPaymentRequest opens an online payment for an invoice.
// A nil Amount requests the whole outstanding amount.
type StartGatewayPaymentRequest struct {
	Amount      *decimal.Decimal
	Description string
}

// GatewayPaymentResult is the pending transaction the gateway will confirm
type GatewayPaymentResult struct {
	InvoiceID      uuid.UUID
	TransactionID  uuid.UUID
	TrackingNumber string
	Amount         decimal.Decimal
	Currency       valueobject.Currency
	GatewayName    string
	MerchantID     string
}

// WalletTopUpRequest creates an invoice that credits a user's wallet once paid
type WalletTopUpRequest struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Currency    valueobject.Currency
	Description string
}

// InvoiceService implements the invoice use cases
type InvoiceService struct {
	scope                 TransactionScope
	invoiceRepo           finance.InvoiceRepository
	wallets               *WalletService
	paymentSettings       acl.PaymentSettingsQuery
	eventPublisher        shared.EventPublisher
	retrier               conflictRetrier
	invoiceNumberAttempts int
	logger                *zap.Logger
}

// InvoiceServiceConfig holds the dependencies of InvoiceService
type InvoiceServiceConfig struct {
	Scope                 TransactionScope
	InvoiceRepo           finance.InvoiceRepository
	Wallets               *WalletService
	PaymentSettings       acl.PaymentSettingsQuery
	EventPublisher        shared.EventPublisher
	RetryPolicy           RetryPolicy
	InvoiceNumberAttempts int
	Metrics               *telemetry.LedgerMetrics
	Logger                *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(cfg InvoiceServiceConfig) *InvoiceService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := cfg.InvoiceNumberAttempts
	if attempts <= 0 {
		attempts = DefaultInvoiceNumberAttempts
	}
	return &InvoiceService{
		scope:                 cfg.Scope,
		invoiceRepo:           cfg.InvoiceRepo,
		wallets:               cfg.Wallets,
		paymentSettings:       cfg.PaymentSettings,
		eventPublisher:        cfg.EventPublisher,
		retrier:               newConflictRetrier(cfg.RetryPolicy, cfg.Metrics, logger),
		invoiceNumberAttempts: attempts,
		logger:                logger,
	}
}

// GetInvoice returns an invoice with its items and transactions
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	return s.invoiceRepo.FindByID(ctx, id)
}

// ListInvoices lists the invoices of an owner
func (s *InvoiceService) ListInvoices(ctx context.Context, owner finance.Owner, filter finance.InvoiceFilter) (shared.Paginated[finance.Invoice], error) {
	filter.Filter = filter.Filter.Normalize()
	invoices, total, err := s.invoiceRepo.FindByOwner(ctx, owner, filter)
	if err != nil {
		return shared.Paginated[finance.Invoice]{}, fmt.Errorf("failed to list invoices: %w", err)
	}
	return shared.NewPaginated(invoices, total, filter.Page, filter.PageSize), nil
}

// CreateInvoice issues a new invoice with a generated number
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*finance.Invoice, error) {
	if finance.IsReservedExternalReference(req.ExternalReference) {
		return nil, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("External reference %q uses a prefix reserved for wallet top-ups and payouts", req.ExternalReference))
	}
	return s.createInvoice(ctx, req)
}

func (s *InvoiceService) createInvoice(ctx context.Context, req CreateInvoiceRequest) (*finance.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()

	if len(req.Items) == 0 {
		err := shared.NewDomainError(shared.CodeValidation, "An invoice needs at least one item")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var invoice *finance.Invoice
	pending := &pendingEvents{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		number, err := nextInvoiceNumber(ctx, repos.InvoiceRepo(), s.invoiceNumberAttempts)
		if err != nil {
			return err
		}
		inv, err := buildInvoice(number, req)
		if err != nil {
			return err
		}
		if err := repos.InvoiceRepo().Create(ctx, inv); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		pending.collect(inv)
		invoice = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, pending)
	telemetry.SetAttributes(span, "invoice_number", invoice.InvoiceNumber)
	telemetry.SetOK(span)

	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("owner", invoice.Owner.String()),
		zap.String("grand_total", invoice.GrandTotal().String()),
	)
	return invoice, nil
}

func buildInvoice(number string, req CreateInvoiceRequest) (*finance.Invoice, error) {
	inv, err := finance.NewInvoice(number, req.Title, req.Currency.OrDefault(), req.Owner, req.DueDate)
	if err != nil {
		return nil, err
	}
	inv.SetDescription(req.Description)
	if req.ExternalReference != "" {
		if err := inv.SetExternalReference(req.ExternalReference); err != nil {
			return nil, err
		}
	}
	for _, item := range req.Items {
		if _, err := inv.AddItem(item); err != nil {
			return nil, err
		}
	}
	if !req.TaxAmount.IsZero() {
		if err := inv.SetTax(req.TaxAmount); err != nil {
			return nil, err
		}
	}
	if !req.AdjustmentAmount.IsZero() {
		if err := inv.SetAdjustment(req.AdjustmentAmount); err != nil {
			return nil, err
		}
	}
	if req.ShippingAddress != nil {
		if err := inv.SetShippingAddress(*req.ShippingAddress); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// nextInvoiceNumber generates an unused invoice number
func nextInvoiceNumber(ctx context.Context, repo finance.InvoiceRepository, attempts int) (string, error) {
	for i := 0; i < attempts; i++ {
		number := finance.GenerateInvoiceNumber(time.Now())
		exists, err := repo.ExistsByNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("failed to check invoice number: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", shared.NewDomainError(shared.CodeAlreadyExists,
		fmt.Sprintf("Could not allocate a unique invoice number after %d attempts", attempts))
}

// SubmitTransaction records a payment transaction. A reference already present
// on the invoice, compared case-insensitively, is rejected as a duplicate.
func (s *InvoiceService) SubmitTransaction(ctx context.Context, invoiceID uuid.UUID, req SubmitTransactionRequest) (*InvoiceTransactionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "submit_transaction")
	defer span.End()

	telemetry.SetAttributes(span,
		"invoice_id", invoiceID.String(),
		"reference", req.Reference,
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	result, err := s.mutateInvoice(ctx, invoiceID, "invoice.submit_transaction", func(inv *finance.Invoice) (*finance.PaymentTransaction, error) {
		if inv.FindTransactionByReference(req.Reference) != nil {
			return nil, duplicateReferenceError(req.Reference)
		}
		return inv.AddTransaction(finance.AddTransactionInput{
			Amount:      req.Amount,
			Method:      req.Method,
			Status:      req.Status,
			Reference:   req.Reference,
			GatewayName: req.GatewayName,
			Description: req.Description,
			Metadata:    req.Metadata,
			OccurredAt:  req.OccurredAt,
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

func duplicateReferenceError(reference string) error {
	return shared.NewDomainError(shared.CodeDuplicateReference,
		fmt.Sprintf("Transaction reference %s is already recorded on this invoice", reference))
}

// UpdateTransaction changes the status and details of a recorded transaction
func (s *InvoiceService) UpdateTransaction(
	ctx context.Context,
	invoiceID uuid.UUID,
	transactionID uuid.UUID,
	input finance.UpdateTransactionInput,
) (*InvoiceTransactionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update_transaction")
	defer span.End()

	result, err := s.mutateInvoice(ctx, invoiceID, "invoice.update_transaction", func(inv *finance.Invoice) (*finance.PaymentTransaction, error) {
		return inv.UpdateTransaction(transactionID, input)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// CancelInvoice cancels an invoice that has no succeeded payment
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) (*finance.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel")
	defer span.End()

	result, err := s.mutateInvoice(ctx, invoiceID, "invoice.cancel", func(inv *finance.Invoice) (*finance.PaymentTransaction, error) {
		return nil, inv.Cancel(reason)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("invoice cancelled",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("reason", reason),
	)
	return result.Invoice, nil
}

// SetShippingAddress replaces the shipping snapshot of an invoice
func (s *InvoiceService) SetShippingAddress(ctx context.Context, invoiceID uuid.UUID, addr finance.ShippingAddress) (*finance.Invoice, error) {
	result, err := s.mutateInvoice(ctx, invoiceID, "invoice.set_shipping_address", func(inv *finance.Invoice) (*finance.PaymentTransaction, error) {
		return nil, inv.SetShippingAddress(addr)
	})
	if err != nil {
		return nil, err
	}
	return result.Invoice, nil
}

// mutateInvoice runs load, mutate and SaveWithLock under the conflict retry policy
func (s *InvoiceService) mutateInvoice(
	ctx context.Context,
	invoiceID uuid.UUID,
	operation string,
	mutate func(*finance.Invoice) (*finance.PaymentTransaction, error),
) (*InvoiceTransactionResult, error) {
	var result *InvoiceTransactionResult
	pending := &pendingEvents{}
	err := s.retrier.Do(ctx, operation, func() error {
		pending.reset()
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			inv, err := repos.InvoiceRepo().FindByID(ctx, invoiceID)
			if err != nil {
				return err
			}
			tx, err := mutate(inv)
			if err != nil {
				return err
			}
			if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
				return fmt.Errorf("failed to save invoice: %w", err)
			}
			pending.collect(inv)
			result = &InvoiceTransactionResult{Invoice: inv}
			if tx != nil {
				result.Transaction = *tx
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, pending)
	return result, nil
}

// PayInvoice pays an invoice from the owner's wallet. The wallet is debited first;
// if the invoice transaction cannot be recorded afterwards the debit is refunded
// with a compensating credit. A reference already on the invoice is rejected before
// any debit. A debit left behind by an earlier attempt with the same reference is
// recorded as is and never refunded a second time.
func (s *InvoiceService) PayInvoice(ctx context.Context, invoiceID uuid.UUID, req PayInvoiceRequest) (*PayInvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "pay_with_wallet")
	defer span.End()

	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if inv.Owner.IsPlatform() {
		err := shared.NewDomainError(shared.CodeInvalidState, "Platform invoices cannot be paid from a wallet")
		telemetry.RecordError(span, err)
		return nil, err
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = finance.GenerateReference(finance.ReferencePrefixWalletPayment, time.Now())
	}
	if inv.FindTransactionByReference(reference) != nil {
		err := duplicateReferenceError(reference)
		telemetry.RecordError(span, err)
		return nil, err
	}
	amount, err := payableAmount(inv, req.Amount)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	paymentTag := finance.InvoicePaymentTag(inv.ID, reference)
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Payment of invoice %s", inv.InvoiceNumber)
	}

	debit, err := s.wallets.Debit(ctx, WalletCommand{
		Owner:          inv.Owner,
		Currency:       inv.Currency,
		Amount:         amount,
		Reference:      reference,
		Description:    description,
		IdempotencyTag: paymentTag,
		InvoiceID:      &inv.ID,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if debit.AlreadyProcessed {
		if err := s.ensureWalletPaymentNotRefunded(ctx, inv, reference); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		amount = debit.Transaction.Amount
	}

	recorded, err := s.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
		Amount:      amount,
		Method:      finance.PaymentMethodWallet,
		Status:      finance.TransactionStatusSucceeded,
		Reference:   reference,
		Description: description,
		Metadata:    paymentTag,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if debit.AlreadyProcessed {
			s.logger.Error("earlier wallet debit could not be recorded on the invoice, manual reconciliation required",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("reference", reference),
				zap.String("wallet_transaction_id", debit.Transaction.ID.String()),
				zap.Error(err),
			)
			return nil, err
		}
		s.refundWalletPayment(ctx, inv, amount, reference, err)
		return nil, err
	}
	telemetry.SetOK(span)

	return &PayInvoiceResult{
		Invoice:           recorded.Invoice,
		Transaction:       recorded.Transaction,
		WalletTransaction: debit.Transaction,
		WalletBalance:     debit.Balance,
	}, nil
}

// ensureWalletPaymentNotRefunded fails when the debit of reference was already
// given back, so the invoice is never credited with money the owner still holds.
func (s *InvoiceService) ensureWalletPaymentNotRefunded(ctx context.Context, inv *finance.Invoice, reference string) error {
	account, err := s.wallets.GetAccount(ctx, inv.Owner, inv.Currency)
	if err != nil {
		return err
	}
	if account.FindSucceededByTag(&inv.ID, finance.InvoicePaymentRefundTag(inv.ID, reference)) != nil {
		return shared.NewDomainError(shared.CodeDuplicateReference,
			fmt.Sprintf("Payment reference %s was refunded, retry with a new reference", reference))
	}
	return nil
}

func (s *InvoiceService) refundWalletPayment(ctx context.Context, inv *finance.Invoice, amount decimal.Decimal, reference string, cause error) {
	s.logger.Warn("invoice payment could not be recorded, refunding wallet debit",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("reference", reference),
		zap.String("amount", amount.String()),
		zap.Error(cause),
	)
	_, err := s.wallets.Credit(ctx, WalletCommand{
		Owner:           inv.Owner,
		Currency:        inv.Currency,
		Amount:          amount,
		ReferencePrefix: finance.ReferencePrefixWalletRefund,
		Description:     fmt.Sprintf("Refund of failed payment %s for invoice %s", reference, inv.InvoiceNumber),
		IdempotencyTag:  finance.InvoicePaymentRefundTag(inv.ID, reference),
		InvoiceID:       &inv.ID,
	})
	if err != nil {
		s.logger.Error("wallet refund failed, manual reconciliation required",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("owner", inv.Owner.String()),
			zap.String("reference", reference),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
	}
}

// payableAmount resolves the amount to pay: the requested amount capped at the outstanding amount
func payableAmount(inv *finance.Invoice, requested *decimal.Decimal) (decimal.Decimal, error) {
	if inv.Status == finance.InvoiceStatusCancelled {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidState, "Cannot pay a cancelled invoice")
	}
	outstanding := inv.OutstandingAmount()
	if !outstanding.IsPositive() {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidState, "Invoice has no outstanding amount")
	}
	if requested == nil {
		return outstanding, nil
	}
	if !requested.IsPositive() {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidAmount, "Payment amount must be positive")
	}
	if requested.GreaterThan(outstanding) {
		return outstanding, nil
	}
	return *requested, nil
}

// StartGatewayPayment records a pending online payment and returns its tracking number
func (s *InvoiceService) StartGatewayPayment(ctx context.Context, invoiceID uuid.UUID, req StartGatewayPaymentRequest) (*GatewayPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "start_gateway_payment")
	defer span.End()

	settings, err := s.paymentSettings.GetPaymentSettings(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load payment settings: %w", err)
	}
	if settings == nil || !settings.IsActive {
		err := shared.NewDomainError(shared.CodeInvalidState, "Online payment gateway is not active")
		telemetry.RecordError(span, err)
		return nil, err
	}

	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	amount, err := payableAmount(inv, req.Amount)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	tracking := finance.GenerateReference(finance.ReferencePrefixGatewayPayment, time.Now())
	recorded, err := s.SubmitTransaction(ctx, inv.ID, SubmitTransactionRequest{
		Amount:      amount,
		Method:      finance.PaymentMethodOnlineGateway,
		Status:      finance.TransactionStatusPending,
		Reference:   tracking,
		GatewayName: settings.GatewayName,
		Description: req.Description,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)

	s.logger.Info("gateway payment started",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("tracking_number", tracking),
		zap.String("gateway", settings.GatewayName),
		zap.String("amount", amount.String()),
	)

	return &GatewayPaymentResult{
		InvoiceID:      inv.ID,
		TransactionID:  recorded.Transaction.ID,
		TrackingNumber: tracking,
		Amount:         amount,
		Currency:       inv.Currency,
		GatewayName:    settings.GatewayName,
		MerchantID:     settings.GatewayMerchantID,
	}, nil
}

// CreateWalletTopUp issues an invoice that credits the user's wallet once paid
func (s *InvoiceService) CreateWalletTopUp(ctx context.Context, req WalletTopUpRequest) (*finance.Invoice, error) {
	if req.UserID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "User id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidAmount, "Top-up amount must be positive")
	}
	description := req.Description
	if description == "" {
		description = "Wallet top-up"
	}
	return s.createInvoice(ctx, CreateInvoiceRequest{
		Title:             "Wallet top-up",
		Description:       description,
		Currency:          req.Currency,
		Owner:             finance.UserOwner(req.UserID),
		ExternalReference: finance.NewWalletChargeExternalReference(time.Now()),
		Items: []finance.InvoiceItemInput{{
			Name:      "Wallet charge",
			Type:      finance.InvoiceItemTypeWalletCharge,
			Quantity:  1,
			UnitPrice: req.Amount,
		}},
	})
}
