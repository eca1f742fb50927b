package models

// DeckSize is the number of cards in a standard tarot deck. Card ids run
// from 1 to DeckSize.
const DeckSize = 78

const (
	CardTypeMajor = "MAJOR"
	CardTypeMinor = "MINOR"
)

// Card is one entry of the read-only card catalogue. Suit is nil for the
// major arcana.
type Card struct {
	ID          uint    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Type        string  `gorm:"type:varchar(8);not null" json:"type"`
	Suit        *string `gorm:"type:varchar(16)" json:"suit"`
	NameShort   string  `gorm:"type:varchar(8);not null;uniqueIndex:idx_cards_name_short" json:"nameShort"`
	Name        string  `gorm:"type:varchar(64);not null" json:"name"`
	Value       string  `gorm:"type:varchar(16);not null" json:"value"`
	IntValue    int     `gorm:"not null" json:"intValue"`
	MeaningUp   string  `gorm:"type:text;not null" json:"meaningUp"`
	MeaningRev  string  `gorm:"type:text;not null" json:"meaningRev"`
	Description *string `gorm:"type:text" json:"description"`
}

func (c *Card) IsMajor() bool {
	return c.Type == CardTypeMajor
}
