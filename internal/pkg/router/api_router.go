package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Arcana/app/controllers"
	"github.com/ManuelReschke/Arcana/internal/pkg/deck"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
	"github.com/ManuelReschke/Arcana/internal/pkg/middleware"
	"github.com/ManuelReschke/Arcana/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	deps := h.deps
	logger := logging.OrNop(deps.Logger)
	repos := deps.Repositories

	webhooks := controllers.NewWebhookController(deps.Billing, logger)
	health := controllers.NewHealthController(deps.DB, logger)
	auth := controllers.NewAuthController(repos.User, logger)
	cards := controllers.NewCardController(repos.Card, deck.NewDealer(repos.Card), logger)
	readings := controllers.NewReadingController(repos.Reading, repos.Card, logger)
	interpret := controllers.NewInterpretController(repos.Reading, repos.Card, deps.Quota, deps.Interpreter, logger)
	account := controllers.NewAccountController(repos.User, deps.Quota, logger)

	limit := func(p ratelimit.Policy) fiber.Handler {
		return middleware.RateLimit(deps.RateLimits, p, logger)
	}
	requireAPIKey := middleware.APIKeyAuth(repos.User, logger)

	api := app.Group("/api")
	if deps.FloodGuard != nil {
		api.Use(deps.FloodGuard)
	}
	api.Get("/health", health.HandleHealth)
	// Polar signs the raw body, nothing may read or rewrite it first.
	api.Post("/webhooks/polar", webhooks.HandlePolarWebhook)

	v1 := api.Group("/v1")

	authGroup := v1.Group("/auth")
	authGroup.Post("/register", limit(ratelimit.PolicyRegister), auth.HandleRegister)
	authGroup.Post("/login", limit(ratelimit.PolicyLogin), auth.HandleLogin)

	cardGroup := v1.Group("/cards", limit(ratelimit.PolicyCards))
	cardGroup.Get("/", cards.HandleListCards)
	cardGroup.Get("/draw/:count", cards.HandleDrawCards)
	cardGroup.Get("/:id", cards.HandleGetCard)

	readingGroup := v1.Group("/readings", requireAPIKey, limit(ratelimit.PolicyReadings))
	readingGroup.Post("/", readings.HandleCreateReading)
	readingGroup.Get("/", readings.HandleListReadings)
	readingGroup.Get("/:id", readings.HandleGetReading)
	readingGroup.Delete("/:id", readings.HandleDeleteReading)

	v1.Post("/tarot/interpret", requireAPIKey, limit(ratelimit.PolicyInterpret), interpret.HandleInterpret)
	v1.Get("/user/account", requireAPIKey, account.HandleGetUserAccount)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
