package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/models"
)

const maxReadingPageSize = 100

type readingRepository struct {
	db *gorm.DB
}

func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{db: db}
}

func (r *readingRepository) Create(reading *models.Reading) error {
	return r.db.Create(reading).Error
}

func (r *readingRepository) GetByID(id string) (*models.Reading, error) {
	var reading models.Reading
	if err := r.db.Where("id = ?", id).First(&reading).Error; err != nil {
		return nil, err
	}
	return &reading, nil
}

// ListByUserID returns the newest readings of a user first.
func (r *readingRepository) ListByUserID(userID string, offset, limit int) ([]models.Reading, error) {
	if limit <= 0 || limit > maxReadingPageSize {
		limit = maxReadingPageSize
	}
	if offset < 0 {
		offset = 0
	}
	var readings []models.Reading
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&readings).Error
	return readings, err
}

func (r *readingRepository) CountByUserID(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Reading{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *readingRepository) UpdateInterpretation(id, interpretation string) error {
	return r.db.Model(&models.Reading{}).Where("id = ?", id).Update("interpretation", interpretation).Error
}

// Delete soft-deletes a reading.
func (r *readingRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Reading{}).Error
}
