package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
	"github.com/ManuelReschke/Arcana/internal/pkg/llm"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
	"github.com/ManuelReschke/Arcana/internal/pkg/usage"
	"github.com/ManuelReschke/Arcana/internal/pkg/usercontext"
)

const interpretTimeout = 30 * time.Second

// Interpreter generates text for a prompt; *llm.Client implements it.
type Interpreter interface {
	GenerateInterpretation(ctx context.Context, prompt string) (string, error)
}

// QuotaTracker is the monthly usage gate; *usage.Tracker implements it.
type QuotaTracker interface {
	CheckQuota(ctx context.Context, userID string, tier entitlements.Tier) (bool, error)
	IncrementUsage(ctx context.Context, userID string) (int, error)
}

type InterpretRequest struct {
	ReadingID   string     `json:"readingId" validate:"required,uuid"`
	UserInput   string     `json:"userInput" validate:"required,max=1000"`
	UserContext string     `json:"userContext" validate:"max=2000"`
	SpreadType  string     `json:"spreadType" validate:"required,oneof=ONE_CARD THREE_CARD CELTIC_CROSS CUSTOM"`
	Cards       []llm.Card `json:"cards" validate:"required,min=1,max=78,dive"`
}

type InterpretResponse struct {
	ReadingID      string            `json:"readingId"`
	Interpretation string            `json:"interpretation"`
	Timestamp      string            `json:"timestamp"`
	SpreadType     string            `json:"spreadType"`
	Tier           entitlements.Tier `json:"tier"`
	UsageThisMonth int               `json:"usageThisMonth"`
}

type InterpretController struct {
	readings repository.ReadingRepository
	cards    repository.CardRepository
	quota    QuotaTracker
	llm      Interpreter
	logger   *zap.Logger
	now      func() time.Time
}

func NewInterpretController(readings repository.ReadingRepository, cards repository.CardRepository, quota QuotaTracker, interpreter Interpreter, logger *zap.Logger) *InterpretController {
	return &InterpretController{
		readings: readings,
		cards:    cards,
		quota:    quota,
		llm:      interpreter,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// HandleInterpret checks ownership and the monthly quota before calling the
// model, then counts the call and stores the text on the reading.
func (ic *InterpretController) HandleInterpret(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return SendError(c, fiber.StatusUnauthorized, "Missing or invalid authentication")
	}

	var req InterpretRequest
	if err := c.BodyParser(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, "Invalid interpretation request")
	}
	if err := validate.Struct(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	log := ic.logger.With(zap.String("user_id", userCtx.UserID), zap.String("reading_id", req.ReadingID))

	reading, err := ic.readings.GetByID(req.ReadingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SendError(c, fiber.StatusNotFound, "Reading not found")
		}
		log.Error("failed to load reading", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load reading")
	}
	if !reading.IsOwnedBy(userCtx.UserID) {
		return SendError(c, fiber.StatusForbidden, "Access denied to reading")
	}

	cards, err := resolveCards(ic.cards, req.Cards)
	if err != nil {
		if errors.Is(err, errUnknownCard) {
			return SendError(c, fiber.StatusBadRequest, "Unknown card id")
		}
		log.Error("failed to resolve cards", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load cards")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), interpretTimeout)
	defer cancel()

	hasQuota, err := ic.quota.CheckQuota(ctx, userCtx.UserID, userCtx.Tier)
	if err != nil {
		log.Error("quota check failed", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to check usage quota")
	}
	if !hasQuota {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(usage.SecondsUntilReset(ic.now())))
		return SendError(c, fiber.StatusTooManyRequests, "Monthly interpretation limit reached. Upgrade your tier for more readings.")
	}

	prompt := llm.BuildPrompt(llm.PromptRequest{
		SpreadType:  req.SpreadType,
		UserInput:   req.UserInput,
		UserContext: req.UserContext,
		Cards:       cards,
	})
	interpretation, err := ic.llm.GenerateInterpretation(ctx, prompt)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrTimeout):
			log.Warn("interpretation timed out", zap.Error(err))
			return SendError(c, fiber.StatusGatewayTimeout, "Interpretation timed out, please try again")
		case errors.Is(err, llm.ErrRateLimited):
			log.Warn("interpretation provider rate limited", zap.Error(err))
			return SendError(c, fiber.StatusTooManyRequests, "Interpretation service is busy, please try again later")
		case errors.Is(err, llm.ErrNotConfigured):
			log.Error("interpretation provider not configured")
			return SendError(c, fiber.StatusServiceUnavailable, "Interpretation service unavailable")
		default:
			log.Error("interpretation failed", zap.Error(err))
			return SendError(c, fiber.StatusBadGateway, "Interpretation service error")
		}
	}

	used, err := ic.quota.IncrementUsage(ctx, userCtx.UserID)
	if err != nil {
		log.Error("failed to record usage", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to record usage")
	}
	if err := ic.readings.UpdateInterpretation(reading.ID, interpretation); err != nil {
		log.Error("failed to store interpretation", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to store interpretation")
	}

	return c.Status(fiber.StatusOK).JSON(InterpretResponse{
		ReadingID:      reading.ID,
		Interpretation: interpretation,
		Timestamp:      ic.now().UTC().Format(time.RFC3339),
		SpreadType:     req.SpreadType,
		Tier:           userCtx.Tier,
		UsageThisMonth: used,
	})
}
