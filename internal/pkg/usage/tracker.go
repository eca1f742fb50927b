package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

var ErrUserRequired = errors.New("usage: user id is required")

// MonthKey returns the UTC month bucket ("YYYY-MM") for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NextReset returns the start of the UTC month after t, when quotas reset.
func NextReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// SecondsUntilReset is the whole seconds from now until NextReset, rounded
// up.
func SecondsUntilReset(now time.Time) int {
	d := NextReset(now).Sub(now)
	return int((d + time.Second - 1) / time.Second)
}

// Snapshot is the current month's usage for one user.
type Snapshot struct {
	Month     string `json:"month"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

// Tracker enforces the monthly interpretation quota.
type Tracker struct {
	repo Repository
	Now  func() time.Time
}

func NewTracker(repo Repository) *Tracker {
	return &Tracker{repo: repo, Now: time.Now}
}

func NewTrackerFromDB(db *gorm.DB) *Tracker {
	return NewTracker(NewRepository(db))
}

func (t *Tracker) month() string {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return MonthKey(now())
}

// CheckQuota reports whether userID may run one more interpretation this
// month. PREMIUM returns true without reading the counter.
func (t *Tracker) CheckQuota(ctx context.Context, userID string, tier entitlements.Tier) (bool, error) {
	limit, unlimited := entitlements.MonthlyInterpretations(tier)
	if unlimited {
		return true, nil
	}
	if strings.TrimSpace(userID) == "" {
		return false, ErrUserRequired
	}

	count, err := t.repo.GetCount(ctx, userID, t.month())
	if err != nil {
		return false, fmt.Errorf("usage: read count: %w", err)
	}
	return count < limit, nil
}

// IncrementUsage records one interpretation and returns the new count.
func (t *Tracker) IncrementUsage(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUserRequired
	}
	count, err := t.repo.Increment(ctx, userID, t.month())
	if err != nil {
		return 0, fmt.Errorf("usage: increment: %w", err)
	}
	return count, nil
}

// GetUsage returns the count for userID in month ("YYYY-MM"); an empty month
// means the current one.
func (t *Tracker) GetUsage(ctx context.Context, userID, month string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUserRequired
	}
	if month == "" {
		month = t.month()
	}
	return t.repo.GetCount(ctx, userID, month)
}

func (t *Tracker) Snapshot(ctx context.Context, userID string, tier entitlements.Tier) (Snapshot, error) {
	month := t.month()
	used, err := t.GetUsage(ctx, userID, month)
	if err != nil {
		return Snapshot{}, err
	}

	limit, unlimited := entitlements.MonthlyInterpretations(tier)
	s := Snapshot{Month: month, Used: used, Limit: limit, Unlimited: unlimited}
	if !unlimited {
		s.Remaining = max(limit-used, 0)
	}
	return s, nil
}
