package llm

import (
	"fmt"
	"strings"
)

// Card is one drawn card as described to the model. ID refers to the card
// catalogue; cards sent with an id take their name and meanings from it.
type Card struct {
	ID         uint   `json:"id,omitempty" validate:"omitempty,gte=1,lte=78"`
	Name       string `json:"name" validate:"required_without=ID,max=100"`
	Reversed   bool   `json:"reversed"`
	MeaningUp  string `json:"meaningUp" validate:"max=2000"`
	MeaningRev string `json:"meaningRev" validate:"max=2000"`
	Position   int    `json:"position" validate:"gte=0,lte=78"`
}

type PromptRequest struct {
	SpreadType  string
	UserInput   string
	UserContext string
	Cards       []Card
}

var spreadDescriptions = map[string]string{
	"ONE_CARD":     "a single card reading for quick insight",
	"THREE_CARD":   "a three-card spread representing past, present, and future",
	"CELTIC_CROSS": "a Celtic Cross spread for deep, comprehensive analysis",
	"CUSTOM":       "a custom spread layout",
}

const outputFormatGuidance = `
Structure your interpretation as follows:
1. Overview (2-3 sentences)
2. Individual card insights (1-2 sentences each)
3. Synthesis and guidance (2-3 sentences)

Keep the total response under 500 words. Be specific and actionable.`

// BuildPrompt renders the interpretation prompt for a spread.
func BuildPrompt(r PromptRequest) string {
	desc, ok := spreadDescriptions[r.SpreadType]
	if !ok {
		desc = spreadDescriptions["CUSTOM"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an experienced tarot reader providing an interpretation for %s (%s).\n\n", desc, r.SpreadType)
	fmt.Fprintf(&b, "The querent asks: %q", r.UserInput)
	if ctx := strings.TrimSpace(r.UserContext); ctx != "" {
		fmt.Fprintf(&b, "\n\nAdditional context: %s", ctx)
	}

	b.WriteString("\n\nCards drawn:\n\n")
	for i, card := range r.Cards {
		orientation, meaning := "Upright", card.MeaningUp
		if card.Reversed {
			orientation, meaning = "Reversed", card.MeaningRev
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Position %d: %s (%s)\nMeaning: %s", i+1, card.Name, orientation, meaning)
	}

	b.WriteString("\n\nProvide a thoughtful, insightful interpretation that connects the cards to the querent's question. Be specific about how each card relates to their situation.")
	b.WriteString("\n" + outputFormatGuidance)
	return b.String()
}
