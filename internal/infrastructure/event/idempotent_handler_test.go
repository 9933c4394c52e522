package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestIdempotentHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("handles a new event once and skips its redelivery", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()
		inner := newRecordingHandler(finance.EventTypeInvoicePaid)
		h := NewIdempotentHandler(inner, store, zap.NewNop())

		event := newInvoicePaid()
		require.NoError(t, h.Handle(ctx, event))
		require.NoError(t, h.Handle(ctx, event))

		assert.Len(t, inner.received(), 1)
		stats := h.GetMetrics().Stats()
		assert.Equal(t, int64(1), stats.EventsProcessed)
		assert.Equal(t, int64(1), stats.EventsDuplicate)
	})

	t.Run("distinct events are both handled", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()
		inner := newRecordingHandler(finance.EventTypeInvoicePaid)
		h := NewIdempotentHandler(inner, store, zap.NewNop())

		require.NoError(t, h.Handle(ctx, newInvoicePaid()))
		require.NoError(t, h.Handle(ctx, newInvoicePaid()))

		assert.Len(t, inner.received(), 2)
	})

	t.Run("failed handling releases the key so a redelivery retries", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()
		inner := newRecordingHandler(finance.EventTypeInvoicePaid)
		inner.err = errors.New("wallet conflict")
		h := NewIdempotentHandler(inner, store, zap.NewNop())

		event := newInvoicePaid()
		require.Error(t, h.Handle(ctx, event))

		inner.err = nil
		require.NoError(t, h.Handle(ctx, event))

		assert.Len(t, inner.received(), 2)
		assert.Equal(t, int64(1), h.GetMetrics().Stats().EventsFailed)
	})

	t.Run("store error still delivers the event", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		event := newInvoicePaid()
		store.On("MarkProcessed", mock.Anything, "event:"+event.EventID().String(), 24*time.Hour).
			Return(false, errors.New("redis down"))
		inner := newRecordingHandler(finance.EventTypeInvoicePaid)
		h := NewIdempotentHandler(inner, store, zap.NewNop())

		require.NoError(t, h.Handle(ctx, event))

		assert.Len(t, inner.received(), 1)
		store.AssertExpectations(t)
		store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("disabled config bypasses the store", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		inner := newRecordingHandler(finance.EventTypeInvoicePaid)
		h := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
		)

		event := newInvoicePaid()
		require.NoError(t, h.Handle(ctx, event))
		require.NoError(t, h.Handle(ctx, event))

		assert.Len(t, inner.received(), 2)
		store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("uses the configured TTL", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		event := newInvoicePaid()
		store.On("MarkProcessed", mock.Anything, "event:"+event.EventID().String(), time.Hour).Return(true, nil)
		h := NewIdempotentHandler(newRecordingHandler(), store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: time.Hour}),
		)

		require.NoError(t, h.Handle(ctx, event))
		store.AssertExpectations(t)
	})
}

func TestIdempotentHandler_Wrapping(t *testing.T) {
	inner := newRecordingHandler(finance.EventTypeInvoicePaid)
	metrics := &IdempotencyMetrics{}
	h := NewIdempotentHandler(inner, nil, nil, WithIdempotencyMetrics(metrics))

	assert.Equal(t, []string{finance.EventTypeInvoicePaid}, h.EventTypes())
	assert.Same(t, inner, h.Unwrap())
	assert.Same(t, metrics, h.GetMetrics())

	require.NoError(t, h.Handle(context.Background(), newInvoicePaid()))
	assert.Len(t, inner.received(), 1)
}

func TestIdempotentHandler_OnBus(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	bus := NewInMemoryEventBus(zap.NewNop())
	inner := newRecordingHandler(finance.EventTypeInvoicePaid)
	bus.Subscribe(NewIdempotentHandler(inner, store, zap.NewNop()))

	event := newInvoicePaid()
	require.NoError(t, bus.Publish(context.Background(), event, event))

	assert.Len(t, inner.received(), 1)
}
