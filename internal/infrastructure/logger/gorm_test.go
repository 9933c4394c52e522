package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, slow time.Duration) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, slow), logs
}

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")

	t.Run("query at info level is logged at debug with request id", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Info, 0)
		l.Trace(ctx, time.Now(), sqlFn(`SELECT * FROM "wallet_accounts"`, 1), nil)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.DebugLevel, entry.Level)
		assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
		assert.Equal(t, "gorm", entry.LoggerName)
	})

	t.Run("real errors are logged at error", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Warn, 0)
		l.Trace(ctx, time.Now(), sqlFn("UPDATE invoices", 0), errors.New("connection reset"))

		require.Equal(t, 1, logs.FilterMessage("SQL error").Len())
	})

	t.Run("not found and duplicate keys are expected misses", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Warn, 0)
		l.Trace(ctx, time.Now(), sqlFn("SELECT", 0), gorm.ErrRecordNotFound)
		l.Trace(ctx, time.Now(), sqlFn("INSERT", 0), gorm.ErrDuplicatedKey)

		assert.Equal(t, 0, logs.FilterMessage("SQL error").Len())
		assert.Equal(t, 2, logs.FilterMessage("SQL expected miss").Len())
	})

	t.Run("slow query is a warning", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Warn, 10*time.Millisecond)
		l.Trace(ctx, time.Now().Add(-time.Second), sqlFn("SELECT pg_sleep(1)", 1), nil)

		require.Equal(t, 1, logs.FilterMessage("slow SQL").Len())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Silent, 0)
		l.Trace(ctx, time.Now(), sqlFn("SELECT", 0), errors.New("boom"))

		assert.Equal(t, 0, logs.Len())
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	l, logs := newObservedGormLogger(gormlogger.Silent, 0)
	loud := l.LogMode(gormlogger.Info)

	loud.Info(context.Background(), "migrated %d tables", 6)
	l.Info(context.Background(), "ignored")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "migrated 6 tables", logs.All()[0].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
