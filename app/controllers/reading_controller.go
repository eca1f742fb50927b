package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/models"
	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/llm"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
	"github.com/ManuelReschke/Arcana/internal/pkg/usercontext"
)

type CreateReadingRequest struct {
	SpreadType string     `json:"spreadType" validate:"required,oneof=ONE_CARD THREE_CARD CELTIC_CROSS CUSTOM"`
	UserInput  string     `json:"userInput" validate:"max=1000"`
	Cards      []llm.Card `json:"cards" validate:"required,min=1,max=78,dive"`
}

type ReadingResponse struct {
	ID             string     `json:"id"`
	SpreadType     string     `json:"spreadType"`
	UserInput      string     `json:"userInput"`
	Cards          []llm.Card `json:"cards"`
	Interpretation string     `json:"interpretation,omitempty"`
	CreatedAt      string     `json:"createdAt"`
}

// newReadingResponse renders r. Stored cards that fail to decode are logged
// and rendered as an empty list.
func newReadingResponse(r *models.Reading, logger *zap.Logger) ReadingResponse {
	var cards []llm.Card
	if err := json.Unmarshal([]byte(r.CardsJSON), &cards); err != nil {
		logger.Error("stored reading cards are corrupt", zap.String("reading_id", r.ID), zap.Error(err))
		cards = nil
	}
	if cards == nil {
		cards = []llm.Card{}
	}
	return ReadingResponse{
		ID:             r.ID,
		SpreadType:     r.SpreadType,
		UserInput:      r.UserInput,
		Cards:          cards,
		Interpretation: r.Interpretation,
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type ReadingController struct {
	readings repository.ReadingRepository
	cards    repository.CardRepository
	logger   *zap.Logger
}

func NewReadingController(readings repository.ReadingRepository, cards repository.CardRepository, logger *zap.Logger) *ReadingController {
	return &ReadingController{readings: readings, cards: cards, logger: logging.OrNop(logger)}
}

func (rc *ReadingController) HandleCreateReading(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return SendError(c, fiber.StatusUnauthorized, "Missing or invalid authentication")
	}

	var req CreateReadingRequest
	if err := c.BodyParser(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, "Invalid reading request")
	}
	if err := validate.Struct(&req); err != nil {
		return SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	cards, err := resolveCards(rc.cards, req.Cards)
	if err != nil {
		if errors.Is(err, errUnknownCard) {
			return SendError(c, fiber.StatusBadRequest, "Unknown card id")
		}
		rc.logger.Error("failed to resolve cards", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load cards")
	}
	cardsJSON, err := json.Marshal(cards)
	if err != nil {
		return SendError(c, fiber.StatusBadRequest, "Invalid cards")
	}
	reading := &models.Reading{
		UserID:     userCtx.UserID,
		SpreadType: req.SpreadType,
		UserInput:  req.UserInput,
		CardsJSON:  string(cardsJSON),
	}
	if err := rc.readings.Create(reading); err != nil {
		rc.logger.Error("failed to create reading", zap.String("user_id", userCtx.UserID), zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to save reading")
	}

	return c.Status(fiber.StatusCreated).JSON(newReadingResponse(reading, rc.logger))
}

// loadOwnedReading answers 404 for readings of other users as well.
func (rc *ReadingController) loadOwnedReading(c *fiber.Ctx) (*models.Reading, error) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return nil, SendError(c, fiber.StatusUnauthorized, "Missing or invalid authentication")
	}

	reading, err := rc.readings.GetByID(c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, SendError(c, fiber.StatusNotFound, "Reading not found")
		}
		rc.logger.Error("failed to load reading", zap.Error(err))
		return nil, SendError(c, fiber.StatusInternalServerError, "Failed to load reading")
	}
	if !reading.IsOwnedBy(userCtx.UserID) {
		return nil, SendError(c, fiber.StatusNotFound, "Reading not found")
	}
	return reading, nil
}

func (rc *ReadingController) HandleGetReading(c *fiber.Ctx) error {
	reading, err := rc.loadOwnedReading(c)
	if reading == nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(newReadingResponse(reading, rc.logger))
}

func (rc *ReadingController) HandleListReadings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return SendError(c, fiber.StatusUnauthorized, "Missing or invalid authentication")
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	readings, err := rc.readings.ListByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		rc.logger.Error("failed to list readings", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load readings")
	}
	total, err := rc.readings.CountByUserID(userCtx.UserID)
	if err != nil {
		rc.logger.Error("failed to count readings", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load readings")
	}

	items := make([]ReadingResponse, 0, len(readings))
	for i := range readings {
		items = append(items, newReadingResponse(&readings[i], rc.logger))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (rc *ReadingController) HandleDeleteReading(c *fiber.Ctx) error {
	reading, err := rc.loadOwnedReading(c)
	if reading == nil {
		return err
	}
	if err := rc.readings.Delete(reading.ID); err != nil {
		rc.logger.Error("failed to delete reading", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to delete reading")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
