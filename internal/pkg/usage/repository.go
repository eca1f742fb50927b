package usage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Arcana/app/models"
)

// Repository persists monthly usage counters.
type Repository interface {
	GetCount(ctx context.Context, userID, month string) (int, error)
	Increment(ctx context.Context, userID, month string) (int, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCount(ctx context.Context, userID, month string) (int, error) {
	return getCount(r.db.WithContext(ctx), userID, month)
}

// Increment adds one to the counter with a single upsert and returns the
// count as seen inside the same transaction.
func (r *gormRepository) Increment(ctx context.Context, userID, month string) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &models.UsageRecord{UserID: userID, Month: month, Count: 1}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "month"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":      gorm.Expr("? + 1", clause.Column{Name: "count"}),
				"updated_at": time.Now().UTC(),
			}),
		}).Create(record).Error
		if err != nil {
			return err
		}

		count, err = getCount(tx, userID, month)
		return err
	})
	return count, err
}

func getCount(db *gorm.DB, userID, month string) (int, error) {
	var record models.UsageRecord
	err := db.Where("user_id = ? AND month = ?", userID, month).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return record.Count, nil
}
