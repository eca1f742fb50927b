package controllers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/models"
	"github.com/ManuelReschke/Arcana/app/repository"
	"github.com/ManuelReschke/Arcana/internal/pkg/deck"
	"github.com/ManuelReschke/Arcana/internal/pkg/llm"
	"github.com/ManuelReschke/Arcana/internal/pkg/logging"
)

// CardDealer draws random cards; *deck.Dealer implements it.
type CardDealer interface {
	Draw(count int) ([]models.Card, error)
}

type CardController struct {
	cards  repository.CardRepository
	dealer CardDealer
	logger *zap.Logger
}

func NewCardController(cards repository.CardRepository, dealer CardDealer, logger *zap.Logger) *CardController {
	return &CardController{cards: cards, dealer: dealer, logger: logging.OrNop(logger)}
}

// HandleListCards returns the whole deck ordered by id.
func (cc *CardController) HandleListCards(c *fiber.Ctx) error {
	cards, err := cc.cards.List()
	if err != nil {
		cc.logger.Error("failed to list cards", zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load cards")
	}
	if cards == nil {
		cards = []models.Card{}
	}
	return c.Status(fiber.StatusOK).JSON(cards)
}

func (cc *CardController) HandleGetCard(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return SendError(c, fiber.StatusBadRequest, "Invalid card ID")
	}

	card, err := cc.cards.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SendError(c, fiber.StatusNotFound, fmt.Sprintf("Card not found with id: '%d'", id))
		}
		cc.logger.Error("failed to load card", zap.Uint64("card_id", id), zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to load card")
	}
	return c.Status(fiber.StatusOK).JSON(card)
}

// HandleDrawCards deals :count distinct random cards.
func (cc *CardController) HandleDrawCards(c *fiber.Ctx) error {
	count, err := strconv.Atoi(c.Params("count"))
	if err != nil {
		return SendError(c, fiber.StatusBadRequest, "Invalid card count")
	}

	cards, err := cc.dealer.Draw(count)
	if err != nil {
		if errors.Is(err, deck.ErrInvalidCount) {
			return SendError(c, fiber.StatusBadRequest,
				fmt.Sprintf("Card count must be between 1 and %d", models.DeckSize))
		}
		cc.logger.Error("failed to draw cards", zap.Int("count", count), zap.Error(err))
		return SendError(c, fiber.StatusInternalServerError, "Failed to draw cards")
	}
	return c.Status(fiber.StatusOK).JSON(cards)
}

var errUnknownCard = errors.New("unknown card")

// resolveCards replaces the name and meanings of cards that carry a
// catalogue id with the catalogue entry. Cards without an id pass through.
func resolveCards(catalogue repository.CardRepository, in []llm.Card) ([]llm.Card, error) {
	var ids []uint
	for _, card := range in {
		if card.ID != 0 {
			ids = append(ids, card.ID)
		}
	}
	if len(ids) == 0 {
		return in, nil
	}

	found, err := catalogue.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Card, len(found))
	for _, card := range found {
		byID[card.ID] = card
	}

	out := make([]llm.Card, len(in))
	for i, card := range in {
		out[i] = card
		if card.ID == 0 {
			continue
		}
		entry, ok := byID[card.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", errUnknownCard, card.ID)
		}
		out[i].Name = entry.Name
		out[i].MeaningUp = entry.MeaningUp
		out[i].MeaningRev = entry.MeaningRev
	}
	return out, nil
}
