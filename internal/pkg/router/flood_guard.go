package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Arcana/app/controllers"
	"github.com/ManuelReschke/Arcana/internal/pkg/env"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
	"github.com/ManuelReschke/Arcana/internal/pkg/ratelimit"
)

const (
	defaultFloodGuardMax    = 300
	defaultFloodGuardWindow = time.Minute
	floodGuardRedisDB       = 2
)

// NewFloodGuardFromEnv builds the coarse per-IP limiter that sits in front of
// every /api route. It shares the redis server with the cache when
// RATE_LIMIT_STORE=redis and client is reachable, otherwise it counts in
// process memory. FLOOD_GUARD_MAX=0 disables it.
func NewFloodGuardFromEnv(client *redis.Client, logger *zap.Logger) fiber.Handler {
	logger = logging.OrNop(logger)
	maxRequests := env.GetEnvInt("FLOOD_GUARD_MAX", defaultFloodGuardMax)
	if maxRequests <= 0 {
		logger.Info("api flood guard disabled")
		return nil
	}

	cfg := limiter.Config{
		Max:        maxRequests,
		Expiration: env.GetEnvDuration("FLOOD_GUARD_WINDOW", defaultFloodGuardWindow),
		KeyGenerator: func(c *fiber.Ctx) string {
			return "flood:" + ratelimit.IPKey(c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return controllers.SendError(c, fiber.StatusTooManyRequests, "Too many requests")
		},
	}

	if env.GetEnv("RATE_LIMIT_STORE", ratelimit.StoreMemory) == ratelimit.StoreRedis && client != nil {
		cfg.Storage = newRedisStorage(client)
		logger.Info("api flood guard using redis storage", zap.Int("db", floodGuardRedisDB))
	}

	return limiter.New(cfg)
}

// newRedisStorage reuses the cache connection settings on a separate database.
func newRedisStorage(client *redis.Client) *fiberredis.Storage {
	host := "localhost"
	port := 6379
	opts := client.Options()
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	return fiberredis.New(fiberredis.Config{
		Host:     host,
		Port:     port,
		Password: opts.Password,
		Database: floodGuardRedisDB,
		Reset:    false,
	})
}
