package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Arcana/internal/pkg/env"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Window is the state of one key after a Take.
type Window struct {
	Start   time.Time
	Count   int
	Allowed bool
}

// Store holds fixed-window counters. Take must apply the read-modify-write
// for key atomically.
type Store interface {
	Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error)
}

// advance applies one request to the window state. exists is false for a key
// without a window.
func advance(w Window, exists bool, limit int, window time.Duration, now time.Time) Window {
	if !exists || now.Sub(w.Start) >= window {
		return Window{Start: now, Count: 1, Allowed: true}
	}
	if w.Count < limit {
		return Window{Start: w.Start, Count: w.Count + 1, Allowed: true}
	}
	return Window{Start: w.Start, Count: w.Count, Allowed: false}
}

// NewStoreFromEnv picks the store named by RATE_LIMIT_STORE. The redis store
// needs a connected client; without one the in-memory store is used.
func NewStoreFromEnv(client *redis.Client, logger *zap.Logger) Store {
	logger = logging.OrNop(logger)
	kind := strings.ToLower(strings.TrimSpace(env.GetEnv("RATE_LIMIT_STORE", StoreMemory)))

	if kind == StoreRedis {
		if client != nil {
			logger.Info("rate limiter using redis store")
			return NewRedisStore(client, env.GetEnv("RATE_LIMIT_REDIS_PREFIX", DefaultRedisPrefix))
		}
		logger.Warn("RATE_LIMIT_STORE=redis but no redis client, falling back to memory store")
	}

	store := NewMemoryStore(WithMaxEntries(env.GetEnvInt("RATE_LIMIT_MAX_KEYS", DefaultMaxEntries)))
	store.StartJanitor(time.Minute)
	return store
}
