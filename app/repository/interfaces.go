package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	UpdateAPIKey(userID, hash, prefix string, createdAt time.Time) error
	TouchLastLogin(userID string, at time.Time) error
	Update(user *models.User) error
}

// ReadingRepository defines the interface for reading-related database operations
type ReadingRepository interface {
	Create(reading *models.Reading) error
	GetByID(id string) (*models.Reading, error)
	ListByUserID(userID string, offset, limit int) ([]models.Reading, error)
	CountByUserID(userID string) (int64, error)
	UpdateInterpretation(id, interpretation string) error
	Delete(id string) error
}

// CardRepository reads the card catalogue. The catalogue is seeded by the
// schema setup and never written at runtime.
type CardRepository interface {
	List() ([]models.Card, error)
	GetByID(id uint) (*models.Card, error)
	GetByIDs(ids []uint) ([]models.Card, error)
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Reading ReadingRepository
	Card    CardRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Reading: NewReadingRepository(db),
		Card:    NewCardRepository(db),
	}
}
