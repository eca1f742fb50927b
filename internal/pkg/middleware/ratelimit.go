package middleware

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Arcana/app/controllers"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
	"github.com/ManuelReschke/Arcana/internal/pkg/ratelimit"
	"github.com/ManuelReschke/Arcana/internal/pkg/usercontext"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimit gates a route group with policy. User scoped policies must run
// after APIKeyAuth. Store errors let the request through.
func RateLimit(registry *ratelimit.Registry, policy ratelimit.Policy, logger *zap.Logger) fiber.Handler {
	logger = logging.OrNop(logger).With(zap.String("policy", policy.Name))
	return func(c *fiber.Ctx) error {
		userCtx := usercontext.GetUserContext(c)
		key := ratelimit.KeyFor(policy.Scope, userCtx.UserID, c.IP())

		res, err := registry.Check(c.UserContext(), policy, userCtx.Tier, key)
		if err != nil {
			logger.Error("rate limit store failed, allowing request", zap.String("key", key), zap.Error(err))
			return c.Next()
		}

		c.Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
		c.Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
		c.Set(HeaderRateLimitReset, strconv.FormatInt(res.ResetUnix(), 10))

		if !res.Allowed {
			logger.Info("rate limit exceeded", zap.String("key", key), zap.Int("retry_after", res.RetryAfterSeconds))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(res.RetryAfterSeconds))
			return controllers.SendError(c, fiber.StatusTooManyRequests,
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", res.RetryAfterSeconds))
		}
		return c.Next()
	}
}
