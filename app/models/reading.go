package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SpreadOneCard     = "ONE_CARD"
	SpreadThreeCard   = "THREE_CARD"
	SpreadCelticCross = "CELTIC_CROSS"
	SpreadCustom      = "CUSTOM"
)

// Reading is a saved spread. Interpretation is filled in by the
// interpretation endpoint.
type Reading struct {
	ID             string         `gorm:"type:char(36);primaryKey" json:"id"`
	UserID         string         `gorm:"type:char(36);not null;index" json:"user_id"`
	SpreadType     string         `gorm:"type:varchar(32);not null" json:"spread_type"`
	UserInput      string         `gorm:"type:text" json:"user_input"`
	CardsJSON      string         `gorm:"type:text;not null" json:"-"`
	Interpretation string         `gorm:"type:text" json:"interpretation,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Reading) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// IsOwnedBy reports whether userID may read or interpret this reading.
func (r *Reading) IsOwnedBy(userID string) bool {
	return r != nil && userID != "" && r.UserID == userID
}
