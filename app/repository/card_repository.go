package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/models"
)

type cardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// List returns the whole catalogue ordered by id.
func (r *cardRepository) List() ([]models.Card, error) {
	var cards []models.Card
	err := r.db.Order("id ASC").Find(&cards).Error
	return cards, err
}

func (r *cardRepository) GetByID(id uint) (*models.Card, error) {
	var card models.Card
	if err := r.db.Where("id = ?", id).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// GetByIDs returns the cards for ids ordered by id. Unknown ids are skipped.
func (r *cardRepository) GetByIDs(ids []uint) ([]models.Card, error) {
	if len(ids) == 0 {
		return []models.Card{}, nil
	}
	var cards []models.Card
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&cards).Error
	return cards, err
}

func (r *cardRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Card{}).Count(&count).Error
	return count, err
}
