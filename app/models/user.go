package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

const (
	STATUS_ACTIVE   = "active"
	STATUS_DISABLED = "disabled"
)

type User struct {
	ID              string            `gorm:"type:char(36);primaryKey" json:"id"`
	Name            string            `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email           string            `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password        string            `gorm:"type:text" json:"-" validate:"required,min=8"`
	Status          string            `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active disabled"`
	Tier            entitlements.Tier `gorm:"type:varchar(20);not null;default:'FREE';index" json:"tier"`
	APIKeyHash      string            `gorm:"type:char(64);index;default:''" json:"-"`
	APIKeyPrefix    string            `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt *time.Time        `json:"api_key_created_at"`
	LastLoginAt     *time.Time        `gorm:"default:null" json:"last_login_at"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt    `gorm:"index" json:"-"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "arc_"

// BeforeCreate assigns the UUID the payment provider later echoes back as
// customer.externalId, and applies the registration default tier.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if !u.Tier.Valid() {
		u.Tier = entitlements.TierFree
	}
	return nil
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateUser builds a validated, not yet persisted FREE user. The plain
// password is validated before it is hashed.
func CreateUser(name, email, password string) (*User, error) {
	u := &User{
		Name:     strings.TrimSpace(name),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
		Status:   STATUS_ACTIVE,
		Tier:     entitlements.TierFree,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u.Password = pw

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// EffectiveTier never returns an undefined tier, whatever is stored.
func (u *User) EffectiveTier() entitlements.Tier {
	return entitlements.ParseTier(string(u.Tier))
}

// IssueAPIKey generates a new API key, replacing any previous one, and
// returns the raw secret. Callers must persist the user afterwards.
func (u *User) IssueAPIKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	u.APIKeyHash = hash
	u.APIKeyPrefix = prefix
	u.APIKeyCreatedAt = &now
	return rawKey, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 16 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	return rawKey, rawKey[:16], HashAPIKey(rawKey), nil
}
