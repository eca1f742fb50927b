package deck

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ManuelReschke/Arcana/app/models"
)

//go:embed cards.json
var cardsJSON []byte

var (
	standardOnce sync.Once
	standard     []models.Card
	standardErr  error
)

// Standard returns the 78-card catalogue ordered by id. The slice is a copy.
func Standard() ([]models.Card, error) {
	standardOnce.Do(func() {
		var cards []models.Card
		if err := json.Unmarshal(cardsJSON, &cards); err != nil {
			standardErr = fmt.Errorf("deck: decode catalogue: %w", err)
			return
		}
		if len(cards) != models.DeckSize {
			standardErr = fmt.Errorf("deck: catalogue has %d cards, want %d", len(cards), models.DeckSize)
			return
		}
		for i, c := range cards {
			if c.ID != uint(i+1) {
				standardErr = fmt.Errorf("deck: card %q has id %d, want %d", c.NameShort, c.ID, i+1)
				return
			}
		}
		standard = cards
	})
	if standardErr != nil {
		return nil, standardErr
	}
	out := make([]models.Card, len(standard))
	copy(out, standard)
	return out, nil
}
