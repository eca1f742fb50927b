package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

type HealthController struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewHealthController(db *gorm.DB, logger *zap.Logger) *HealthController {
	return &HealthController{db: db, logger: logging.OrNop(logger)}
}

func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	var one int
	if hc.db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "database": "unavailable"})
	}
	if err := hc.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		hc.logger.Error("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "database": "unreachable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "ok",
		"database":  "up",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
