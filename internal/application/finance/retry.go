package finance

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RetryPolicy controls how optimistic-concurrency conflicts are retried.
// With the defaults the waits between the five attempts are 20ms, 40ms, 80ms and 160ms.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy returns the ledger's standard conflict retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
		Multiplier:      2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
}

// conflictRetrier re-runs a whole load-mutate-save cycle when SaveWithLock reports a conflict.
// Any other error stops the retry loop immediately.
type conflictRetrier struct {
	policy  RetryPolicy
	metrics *telemetry.LedgerMetrics
	logger  *zap.Logger
}

func newConflictRetrier(policy RetryPolicy, metrics *telemetry.LedgerMetrics, logger *zap.Logger) conflictRetrier {
	return conflictRetrier{policy: policy.normalized(), metrics: metrics, logger: logger}
}

// Do runs fn until it succeeds, fails with a non-conflict error, or attempts run out.
// When attempts run out the last conflict error is returned.
func (r conflictRetrier) Do(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if shared.IsConcurrencyConflict(err) {
			r.metrics.RecordConcurrencyConflict(ctx, operation)
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Debug("concurrency conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
		)
	}

	err := backoff.RetryNotify(op, r.policy.backOff(ctx), notify)
	if err != nil && shared.IsConcurrencyConflict(err) {
		r.logger.Warn("concurrency conflict retries exhausted",
			zap.String("operation", operation),
			zap.Int("attempts", attempt),
		)
	}
	return err
}
