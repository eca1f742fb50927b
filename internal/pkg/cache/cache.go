package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Arcana/internal/pkg/env"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

const pingTimeout = 2 * time.Second

// SetupCache initializes the connection to the Redis/Dragonfly server.
// The client is returned even when the ping fails so callers can decide
// whether Redis is required for them.
func SetupCache(logger *zap.Logger) (*redis.Client, error) {
	logger = logging.OrNop(logger)
	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       env.GetEnvInt("CACHE_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	logger.Info("connected to cache", zap.String("addr", addr))
	return client, nil
}
