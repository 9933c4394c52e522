package cache

import (
	"fmt"

	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// DedupeStoreOpener opens the store that remembers delivered gateway callbacks
// and handled domain events. Redis is preferred so every instance shares the marks.
type DedupeStoreOpener struct {
	redis        config.RedisConfig
	keyPrefix    string
	requireRedis bool
	logger       *zap.Logger
}

// DedupeStoreOption configures a DedupeStoreOpener
type DedupeStoreOption func(*DedupeStoreOpener)

// WithLogger sets the logger reporting which backend was opened
func WithLogger(logger *zap.Logger) DedupeStoreOption {
	return func(o *DedupeStoreOpener) {
		o.logger = logger
	}
}

// WithKeyPrefix overrides the Redis key namespace
func WithKeyPrefix(prefix string) DedupeStoreOption {
	return func(o *DedupeStoreOpener) {
		o.keyPrefix = prefix
	}
}

// RequireRedis refuses the in-memory fallback (ledger.require_redis)
func RequireRedis(required bool) DedupeStoreOption {
	return func(o *DedupeStoreOpener) {
		o.requireRedis = required
	}
}

// NewDedupeStoreOpener creates an opener for the given Redis settings
func NewDedupeStoreOpener(cfg config.RedisConfig, opts ...DedupeStoreOption) *DedupeStoreOpener {
	o := &DedupeStoreOpener{
		redis:     cfg,
		keyPrefix: DefaultKeyPrefix,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// KeyPrefix returns the namespace callback and event marks are written under
func (o *DedupeStoreOpener) KeyPrefix() string {
	return o.keyPrefix
}

// Open connects to Redis. When Redis is unreachable it returns a per-process
// in-memory store, unless Redis is required. In-memory marks are not shared:
// a callback delivered to two instances is processed by both.
func (o *DedupeStoreOpener) Open() (shared.IdempotencyStore, error) {
	addr := fmt.Sprintf("%s:%d", o.redis.Host, o.redis.Port)
	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:      o.redis.Host,
		Port:      o.redis.Port,
		Password:  o.redis.Password,
		DB:        o.redis.DB,
		KeyPrefix: o.keyPrefix,
	})
	if err == nil {
		o.logger.Info("dedupe store ready",
			zap.String("backend", "redis"),
			zap.String("addr", addr),
			zap.String("key_prefix", o.keyPrefix),
		)
		return store, nil
	}

	if o.requireRedis {
		return nil, fmt.Errorf("redis required for callback deduplication but unavailable at %s: %w", addr, err)
	}

	o.logger.Warn("Redis unavailable, deduplicating callbacks in memory",
		zap.String("backend", "memory"),
		zap.String("addr", addr),
		zap.String("key_prefix", o.keyPrefix),
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
