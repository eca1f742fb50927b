package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Arcana/internal/pkg/billing"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

const webhookTimeout = 15 * time.Second

// WebhookProcessor is satisfied by *billing.Service.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (billing.WebhookResult, error)
}

type WebhookController struct {
	billing WebhookProcessor
	logger  *zap.Logger
}

func NewWebhookController(svc WebhookProcessor, logger *zap.Logger) *WebhookController {
	return &WebhookController{billing: svc, logger: logging.OrNop(logger)}
}

// HandlePolarWebhook acknowledges every delivery the provider should not
// retry with 200 and only leaves mutation failures for a retry.
func (w *WebhookController) HandlePolarWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.Body()...)
	signature := c.Get(billing.PolarSignatureHeader)

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	res, err := w.billing.HandleWebhook(ctx, rawBody, signature)
	switch res.Outcome {
	case billing.OutcomeRejected:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case billing.OutcomeMalformed:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_json"})
	case billing.OutcomeDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	case billing.OutcomeFailed:
		w.logger.Error("polar webhook failed", zap.String("event_id", res.EventID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if err != nil {
		w.logger.Error("polar webhook returned error with acknowledged outcome", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
