package router

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/controllers"
	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/ratelimit"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are built once in main and handed to the routers.
type Dependencies struct {
	DB           *gorm.DB
	Repositories *repository.Repositories
	Billing      controllers.WebhookProcessor
	Interpreter  controllers.Interpreter
	Quota        QuotaService
	RateLimits   *ratelimit.Registry
	// FloodGuard limits every /api request per IP. nil disables it.
	FloodGuard fiber.Handler
	Logger     *zap.Logger
}

// QuotaService is both the interpret quota gate and the account usage source.
type QuotaService interface {
	controllers.QuotaTracker
	controllers.UsageReporter
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
