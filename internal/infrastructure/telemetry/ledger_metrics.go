package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Ledger metric attribute keys
var (
	AttrWalletTxType     = attribute.Key("wallet_tx_type")
	AttrCurrency         = attribute.Key("currency")
	AttrOperation        = attribute.Key("operation")
	AttrWithdrawalType   = attribute.Key("withdrawal_type")
	AttrWithdrawalStatus = attribute.Key("withdrawal_status")
	AttrOutcome          = attribute.Key("outcome")
)

// LedgerMetrics records the ledger's business counters.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	logger *zap.Logger

	walletMovementTotal      *Counter
	walletAmountTotal        *Counter
	concurrencyConflictTotal *Counter
	withdrawalTotal          *Counter
	sellerShareTotal         *Counter
	paymentVerificationTotal *Counter
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewLedgerMetrics creates the ledger counters on the given meter.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{logger: logger}

	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&lm.walletMovementTotal, "ledger_wallet_transactions_total", "Total number of wallet credits and debits", "{transactions}"},
		{&lm.walletAmountTotal, "ledger_wallet_amount_total", "Total wallet movement amount in minor units", "{minor_units}"},
		{&lm.concurrencyConflictTotal, "ledger_concurrency_conflicts_total", "Optimistic concurrency conflicts seen by ledger writes", "{conflicts}"},
		{&lm.withdrawalTotal, "ledger_withdrawal_transitions_total", "Withdrawal request state transitions", "{transitions}"},
		{&lm.sellerShareTotal, "ledger_seller_share_total", "Seller share distribution outcomes", "{sellers}"},
		{&lm.paymentVerificationTotal, "ledger_payment_verifications_total", "Gateway payment verification outcomes", "{verifications}"},
	}

	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	return lm, nil
}

// RecordWalletMovement records one credit or debit and its amount.
func (m *LedgerMetrics) RecordWalletMovement(ctx context.Context, txType, currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrWalletTxType.String(txType),
		AttrCurrency.String(currency),
	}
	m.walletMovementTotal.Inc(ctx, attrs...)
	m.walletAmountTotal.Add(ctx, amount.Mul(decimal.NewFromInt(100)).IntPart(), attrs...)
}

// RecordConcurrencyConflict records a version conflict on a ledger write.
func (m *LedgerMetrics) RecordConcurrencyConflict(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.concurrencyConflictTotal.Inc(ctx, AttrOperation.String(operation))
}

// RecordWithdrawal records a withdrawal request reaching a status.
func (m *LedgerMetrics) RecordWithdrawal(ctx context.Context, withdrawalType, status string) {
	if m == nil {
		return
	}
	m.withdrawalTotal.Inc(ctx,
		AttrWithdrawalType.String(withdrawalType),
		AttrWithdrawalStatus.String(status),
	)
}

// RecordSellerShare records the outcome for one seller of an invoice.
func (m *LedgerMetrics) RecordSellerShare(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.sellerShareTotal.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordPaymentVerification records the outcome of a gateway callback.
func (m *LedgerMetrics) RecordPaymentVerification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.paymentVerificationTotal.Inc(ctx, AttrOutcome.String(outcome))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
