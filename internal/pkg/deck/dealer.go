package deck

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/ManuelReschke/Arcana/app/models"
)

var (
	ErrInvalidCount = errors.New("deck: invalid card count")
	// ErrIncompleteCatalogue means the card table is missing ids, usually
	// because it was never seeded.
	ErrIncompleteCatalogue = errors.New("deck: card catalogue is incomplete")
)

// CardSource loads catalogue cards by id; repository.CardRepository
// implements it.
type CardSource interface {
	GetByIDs(ids []uint) ([]models.Card, error)
}

// Dealer draws random cards from the catalogue.
type Dealer struct {
	cards   CardSource
	perm    func(n int) []int
	shuffle func(n int, swap func(i, j int))
}

func NewDealer(cards CardSource) *Dealer {
	return &Dealer{cards: cards, perm: rand.Perm, shuffle: rand.Shuffle}
}

// Draw returns count distinct cards in random order. count must be between
// 1 and models.DeckSize.
func (d *Dealer) Draw(count int) ([]models.Card, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be a positive integer", ErrInvalidCount)
	}
	if count > models.DeckSize {
		return nil, fmt.Errorf("%w: count cannot exceed %d cards", ErrInvalidCount, models.DeckSize)
	}

	ids := make([]uint, count)
	for i, p := range d.perm(models.DeckSize)[:count] {
		ids[i] = uint(p + 1)
	}

	cards, err := d.cards.GetByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("deck: load cards: %w", err)
	}
	if len(cards) != count {
		return nil, fmt.Errorf("%w: found %d of %d cards", ErrIncompleteCatalogue, len(cards), count)
	}

	d.shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return cards, nil
}
