package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/app/models"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database. A taken email surfaces as
// gorm.ErrDuplicatedKey.
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an API key hash to its user.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	if err := r.db.Where("api_key_hash = ? AND api_key_hash <> ''", trimmed).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateAPIKey replaces the stored key hash, which revokes the previous key.
func (r *userRepository) UpdateAPIKey(userID, hash, prefix string, createdAt time.Time) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"api_key_hash":       hash,
			"api_key_prefix":     prefix,
			"api_key_created_at": createdAt,
		}).Error
}

func (r *userRepository) TouchLastLogin(userID string, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("last_login_at", at).Error
}

// Update updates an existing user
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}
