package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/controllers"
	"github.com/ManuelReschke/Arcana/app/models"
	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
	"github.com/ManuelReschke/Arcana/internal/pkg/usercontext"
)

// APIKeyAuth authenticates requests carrying a user API key header and
// stores the caller's id and tier in the user context.
func APIKeyAuth(users repository.UserRepository, logger *zap.Logger) fiber.Handler {
	logger = logging.OrNop(logger)
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return controllers.SendError(c, fiber.StatusUnauthorized, "Missing API key")
		}

		user, err := users.GetByAPIKeyHash(models.HashAPIKey(apiKey))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return controllers.SendError(c, fiber.StatusUnauthorized, "Invalid API key")
			}
			logger.Error("api key lookup failed", zap.Error(err))
			return controllers.SendError(c, fiber.StatusInternalServerError, "API key verification failed")
		}

		if !user.IsActive() {
			return controllers.SendError(c, fiber.StatusForbidden, "User inactive")
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     user.ID,
			Name:       user.Name,
			IsLoggedIn: true,
			Tier:       user.EffectiveTier(),
		})

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
