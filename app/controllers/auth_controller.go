package controllers

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/models"
	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

// dummyPasswordHash is compared against on unknown emails so the response
// time does not reveal whether an account exists.
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, _ := models.HashPassword("arcana-dummy-password")
	return hash
})

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type AuthController struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewAuthController(users repository.UserRepository, logger *zap.Logger) *AuthController {
	return &AuthController{users: users, logger: logging.OrNop(logger)}
}

func userPayload(u *models.User) fiber.Map {
	return fiber.Map{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"tier":  u.EffectiveTier(),
	}
}

// HandleRegister creates a FREE account and returns its first API key.
func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, "Invalid registration request")
	}
	if err := validate.Struct(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}
	apiKey, err := user.IssueAPIKey()
	if err != nil {
		ac.logger.Error("api key generation failed", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Registration failed")
	}

	if err := ac.users.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return SendError(c, fiber.StatusConflict, "Email already registered")
		}
		ac.logger.Error("failed to create user", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Registration failed")
	}

	ac.logger.Info("user registered", zap.String("user_id", user.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":   userPayload(user),
		"apiKey": apiKey,
	})
}

// HandleLogin verifies the password and rotates the API key.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, "Invalid login request")
	}
	if err := validate.Struct(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	user, err := ac.users.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			models.CheckPasswordHash(req.Password, dummyPasswordHash())
			return SendError(c, fiber.StatusUnauthorized, "Invalid email or password")
		}
		ac.logger.Error("failed to load user for login", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Login failed")
	}
	if !user.CheckPassword(req.Password) {
		return SendError(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	if !user.IsActive() {
		return SendError(c, fiber.StatusForbidden, "User inactive")
	}

	apiKey, err := user.IssueAPIKey()
	if err != nil {
		ac.logger.Error("api key generation failed", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Login failed")
	}
	if err := ac.users.UpdateAPIKey(user.ID, user.APIKeyHash, user.APIKeyPrefix, *user.APIKeyCreatedAt); err != nil {
		ac.logger.Error("failed to store api key", zap.String("user_id", user.ID), zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Login failed")
	}
	if err := ac.users.TouchLastLogin(user.ID, time.Now().UTC()); err != nil {
		ac.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user":   userPayload(user),
		"apiKey": apiKey,
	})
}
