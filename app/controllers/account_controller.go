package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
	"github.com/ManuelReschke/Arcana/internal/pkg/usage"
	"github.com/ManuelReschke/Arcana/internal/pkg/usercontext"
)

// UsageReporter is satisfied by *usage.Tracker.
type UsageReporter interface {
	Snapshot(ctx context.Context, userID string, tier entitlements.Tier) (usage.Snapshot, error)
}

type AccountController struct {
	users  repository.UserRepository
	usage  UsageReporter
	logger *zap.Logger
}

func NewAccountController(users repository.UserRepository, usage UsageReporter, logger *zap.Logger) *AccountController {
	return &AccountController{users: users, usage: usage, logger: logging.OrNop(logger)}
}

// HandleGetUserAccount returns account information for the authenticated user.
func (ac *AccountController) HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return SendError(c, fiber.StatusUnauthorized, "Missing or invalid authentication")
	}

	account, err := ac.users.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SendError(c, fiber.StatusNotFound, "User not found")
		}
		ac.logger.Error("failed to load user", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	tier := account.EffectiveTier()
	snapshot, err := ac.usage.Snapshot(c.UserContext(), account.ID, tier)
	if err != nil {
		ac.logger.Error("failed to load usage", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load usage")
	}

	var monthlyLimit interface{}
	if !snapshot.Unlimited {
		monthlyLimit = snapshot.Limit
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":                 account.ID,
		"name":               account.Name,
		"email":              account.Email,
		"status":             account.Status,
		"tier":               tier,
		"api_key_prefix":     account.APIKeyPrefix,
		"api_key_created_at": formatTimePtr(account.APIKeyCreatedAt),
		"last_login_at":      formatTimePtr(account.LastLoginAt),
		"usage": fiber.Map{
			"month":               snapshot.Month,
			"interpretations":     snapshot.Used,
			"monthly_limit":       monthlyLimit,
			"remaining":           snapshot.Remaining,
			"unlimited":           snapshot.Unlimited,
			"requests_per_minute": entitlements.InterpretRequestsPerMinute(tier),
		},
	})
}
