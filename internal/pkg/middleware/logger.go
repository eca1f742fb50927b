package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

// RequestLogger logs one line per request. The level follows the status code.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	logger = logging.OrNop(logger)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the app error handler pick the status before logging it.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status_code", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.IP()),
		}
		if query := string(c.Request().URI().QueryString()); query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return nil
	}
}
