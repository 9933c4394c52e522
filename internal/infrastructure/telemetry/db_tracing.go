package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds database tracing settings
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
}

// DefaultDBTracingConfig returns tracing disabled with a 200ms slow query threshold
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "ledger",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm plus callbacks that annotate each query
// span with rows affected, table, slow query marks and non-NotFound errors.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// annotate must run before otelgorm ends the span
	annotate := queryAnnotator(cfg.SlowQueryThresh)
	cb := db.Callback()
	steps := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("ledger_trace:before_create", markQueryStart) },
		func() error { return cb.Query().Before("gorm:query").Register("ledger_trace:before_query", markQueryStart) },
		func() error { return cb.Update().Before("gorm:update").Register("ledger_trace:before_update", markQueryStart) },
		func() error { return cb.Delete().Before("gorm:delete").Register("ledger_trace:before_delete", markQueryStart) },
		func() error { return cb.Row().Before("gorm:row").Register("ledger_trace:before_row", markQueryStart) },
		func() error { return cb.Raw().Before("gorm:raw").Register("ledger_trace:before_raw", markQueryStart) },
		func() error { return cb.Create().After("gorm:create").Before("otel:after:create").Register("ledger_trace:after_create", annotate) },
		func() error { return cb.Query().After("gorm:query").Before("otel:after:query").Register("ledger_trace:after_query", annotate) },
		func() error { return cb.Update().After("gorm:update").Before("otel:after:update").Register("ledger_trace:after_update", annotate) },
		func() error { return cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("ledger_trace:after_delete", annotate) },
		func() error { return cb.Row().After("gorm:row").Before("otel:after:row").Register("ledger_trace:after_row", annotate) },
		func() error { return cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("ledger_trace:after_raw", annotate) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func queryAnnotator(slowThreshold time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}

		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok || slowThreshold <= 0 {
			return
		}
		if elapsed := time.Since(start); elapsed > slowThreshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
