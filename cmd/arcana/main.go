package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/controllers"
	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/billing"
	"github.com/ManuelReschke/Arcana/internal/pkg/cache"
	"github.com/ManuelReschke/Arcana/internal/pkg/database"
	"github.com/ManuelReschke/Arcana/internal/pkg/env"
	"github.com/ManuelReschke/Arcana/internal/pkg/llm"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
	"github.com/ManuelReschke/Arcana/internal/pkg/middleware"
	"github.com/ManuelReschke/Arcana/internal/pkg/ratelimit"
	"github.com/ManuelReschke/Arcana/internal/pkg/router"
	"github.com/ManuelReschke/Arcana/internal/pkg/usage"
)

const shutdownTimeout = 10 * time.Second

// Application is the wired HTTP server plus everything that needs closing on
// shutdown.
type Application struct {
	App     *fiber.App
	Logger  *zap.Logger
	DB      *gorm.DB
	closers []io.Closer
}

func main() {
	envFile := env.SetupEnvFile()

	logger, err := logging.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envFile == "" {
		logger.Info("no .env file found, using process environment only")
	} else {
		logger.Info("loaded environment file", zap.String("path", envFile))
	}

	application, err := NewApplication(logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))

	go func() {
		logger.Info("starting http server", zap.String("addr", addr))
		if err := application.App.Listen(addr); err != nil {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	application.Shutdown()
}

func NewApplication(logger *zap.Logger) (*Application, error) {
	db, err := database.SetupDatabase(logger)
	if err != nil {
		return nil, err
	}

	// Redis is optional: without it rate limits are counted per instance.
	redisClient, err := cache.SetupCache(logger)
	if err != nil {
		logger.Warn("cache unavailable, using in-memory rate limiting", zap.Error(err))
		_ = redisClient.Close()
		redisClient = nil
	}

	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/arcana to project root
		"../../../", // Fallback
	}
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "docs/openapi.yml"); err == nil {
			basePath = path
			break
		}
	}

	cfg := fiber.Config{
		AppName:      "Arcana",
		BodyLimit:    1 << 20,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				logger.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
				return controllers.SendError(c, code, "Internal server error")
			}
			return controllers.SendError(c, code, utils.StatusMessage(code))
		},
	}
	proxy := router.ProxyConfigFromEnv()
	proxy.Apply(&cfg)
	if proxy.Header != "" && !proxy.Enabled() {
		logger.Warn("PROXY_HEADER is ignored without TRUSTED_PROXIES, clients are keyed by peer address",
			zap.String("header", proxy.Header))
	}
	app := fiber.New(cfg)

	// recovery and logging
	app.Use(recover.New(), middleware.RequestLogger(logger))

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	if basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "docs/openapi.yml",
			Path:     "v1",
		}))
	} else {
		logger.Warn("docs/openapi.yml not found, swagger ui disabled")
	}

	rateLimitStore := ratelimit.NewStoreFromEnv(redisClient, logger)
	application := &Application{App: app, Logger: logger, DB: db}
	if c, ok := rateLimitStore.(io.Closer); ok {
		application.closers = append(application.closers, c)
	}
	if redisClient != nil {
		application.closers = append(application.closers, redisClient)
	}

	billingCfg := billing.ConfigFromEnv()
	if billingCfg.WebhookSecret == "" {
		logger.Warn("POLAR_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}

	llmClient := llm.NewClientFromEnv()
	if llmClient.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is empty, interpretations are unavailable")
	}

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		DB:           db,
		Repositories: repository.NewFactory(db).GetRepositories(),
		Billing:      billing.NewServiceFromDB(db, billingCfg, logger),
		Interpreter:  llmClient,
		Quota:        usage.NewTrackerFromDB(db),
		RateLimits:   ratelimit.NewRegistry(rateLimitStore),
		FloodGuard:   router.NewFloodGuardFromEnv(redisClient, logger),
		Logger:       logger,
	})

	return application, nil
}

// Shutdown drains in-flight requests and then releases stores and pools.
func (a *Application) Shutdown() {
	if err := a.App.ShutdownWithTimeout(shutdownTimeout); err != nil {
		a.Logger.Error("http shutdown failed", zap.Error(err))
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
