package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Arcana/app/models"
	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

// Repository provides the DB operations used by the webhook dispatcher.
// Implementations passed to a Transaction callback are bound to that
// transaction.
type Repository interface {
	Transaction(ctx context.Context, fn func(tx Repository) error) error
	ClaimWebhookEvent(ctx context.Context, eventID, eventType string) (ClaimResult, error)
	FindUserByID(ctx context.Context, userID string) (*models.User, error)
	UpdateUserTier(ctx context.Context, userID string, tier entitlements.Tier) error
	WebhookEventExists(ctx context.Context, eventID string) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// ClaimWebhookEvent inserts the ledger row. A conflicting row, whether it
// shows up as zero affected rows or as a translated duplicate-key error,
// means another delivery already owns the event.
func (r *gormRepository) ClaimWebhookEvent(ctx context.Context, eventID, eventType string) (ClaimResult, error) {
	event := &models.WebhookEvent{
		EventID:     strings.TrimSpace(eventID),
		EventType:   strings.TrimSpace(eventType),
		ProcessedAt: time.Now().UTC(),
	}
	if event.EventID == "" {
		return 0, errors.New("billing: event id is required")
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			return AlreadyClaimed, nil
		}
		return 0, tx.Error
	}
	if tx.RowsAffected == 0 {
		return AlreadyClaimed, nil
	}
	return Claimed, nil
}

func (r *gormRepository) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) UpdateUserTier(ctx context.Context, userID string, tier entitlements.Tier) error {
	if !tier.Valid() {
		return errors.New("billing: refusing to store undefined tier")
	}
	// RowsAffected is not checked: MySQL reports 0 for an unchanged tier.
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("tier", tier).Error
}

func (r *gormRepository) WebhookEventExists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("event_id = ?", eventID).Count(&count).Error
	return count > 0, err
}
