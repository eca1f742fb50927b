package usage

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Arcana/internal/pkg/database"
	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

type fakeRepo struct {
	mu     sync.Mutex
	counts map[string]int
	reads  int
	writes int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{counts: map[string]int{}}
}

func (r *fakeRepo) GetCount(_ context.Context, userID, month string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	return r.counts[userID+"|"+month], nil
}

func (r *fakeRepo) Increment(_ context.Context, userID, month string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.counts[userID+"|"+month]++
	return r.counts[userID+"|"+month], nil
}

var march = time.Date(2026, 3, 31, 23, 30, 0, 0, time.UTC)

func newTestTracker(repo Repository) *Tracker {
	tr := NewTracker(repo)
	tr.Now = func() time.Time { return march }
	return tr
}

func TestMonthKeyUsesUTC(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	// 01:30 local on April 1st is still March in UTC.
	local := time.Date(2026, 4, 1, 1, 30, 0, 0, berlin)
	assert.Equal(t, "2026-03", MonthKey(local))
	assert.Equal(t, "2026-12", MonthKey(time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)))
}

func TestNextReset(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid month", time.Date(2026, 5, 17, 8, 30, 0, 0, time.UTC), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"december rolls the year", time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"local time is converted", time.Date(2026, 6, 1, 1, 0, 0, 0, time.FixedZone("CEST", 2*60*60)), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextReset(tt.now))
		})
	}
}

func TestSecondsUntilReset(t *testing.T) {
	assert.Equal(t, 1, SecondsUntilReset(time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, 1, SecondsUntilReset(time.Date(2026, 5, 31, 23, 59, 59, 500_000_000, time.UTC)))
	assert.Equal(t, 24*60*60, SecondsUntilReset(time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)))
}

func TestCheckQuota_FreeTierExhausted(t *testing.T) {
	repo := newFakeRepo()
	repo.counts["u1|2026-03"] = 3
	tr := newTestTracker(repo)

	ok, err := tr.CheckQuota(context.Background(), "u1", entitlements.TierFree)
	require.NoError(t, err)
	assert.False(t, ok)

	repo.counts["u1|2026-03"] = 2
	ok, err = tr.CheckQuota(context.Background(), "u1", entitlements.TierFree)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckQuota_BasicTier(t *testing.T) {
	repo := newFakeRepo()
	tr := newTestTracker(repo)

	repo.counts["u1|2026-03"] = 19
	ok, err := tr.CheckQuota(context.Background(), "u1", entitlements.TierBasic)
	require.NoError(t, err)
	assert.True(t, ok)

	repo.counts["u1|2026-03"] = 20
	ok, err = tr.CheckQuota(context.Background(), "u1", entitlements.TierBasic)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckQuota_PremiumSkipsCounter(t *testing.T) {
	repo := newFakeRepo()
	repo.counts["u1|2026-03"] = 999999
	tr := newTestTracker(repo)

	ok, err := tr.CheckQuota(context.Background(), "u1", entitlements.TierPremium)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, repo.reads)
}

func TestCheckQuota_PreviousMonthDoesNotCount(t *testing.T) {
	repo := newFakeRepo()
	repo.counts["u1|2026-02"] = 3
	tr := newTestTracker(repo)

	ok, err := tr.CheckQuota(context.Background(), "u1", entitlements.TierFree)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTracker_RequiresUser(t *testing.T) {
	tr := newTestTracker(newFakeRepo())

	_, err := tr.CheckQuota(context.Background(), "", entitlements.TierFree)
	assert.ErrorIs(t, err, ErrUserRequired)
	_, err = tr.IncrementUsage(context.Background(), " ")
	assert.ErrorIs(t, err, ErrUserRequired)
}

func TestSnapshot(t *testing.T) {
	repo := newFakeRepo()
	repo.counts["u1|2026-03"] = 5
	tr := newTestTracker(repo)

	s, err := tr.Snapshot(context.Background(), "u1", entitlements.TierFree)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{Month: "2026-03", Used: 5, Limit: 3, Remaining: 0}, s)

	s, err = tr.Snapshot(context.Background(), "u1", entitlements.TierPremium)
	require.NoError(t, err)
	assert.True(t, s.Unlimited)
	assert.Equal(t, 5, s.Used)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory("usage_" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestGormRepository_UpsertIncrement(t *testing.T) {
	db := newTestDB(t)
	tr := newTestTracker(NewRepository(db))
	ctx := context.Background()
	userID := uuid.NewString()

	n, err := tr.IncrementUsage(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = tr.IncrementUsage(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := tr.GetUsage(ctx, userID, "2026-03")
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	got, err = tr.GetUsage(ctx, userID, "2026-04")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestGormRepository_ConcurrentIncrementsAreNotLost(t *testing.T) {
	db := newTestDB(t)
	tr := newTestTracker(NewRepository(db))
	userID := uuid.NewString()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.IncrementUsage(context.Background(), userID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := tr.GetUsage(context.Background(), userID, "")
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestGormRepository_QuotaGateAfterIncrements(t *testing.T) {
	db := newTestDB(t)
	tr := newTestTracker(NewRepository(db))
	ctx := context.Background()
	userID := uuid.NewString()

	for i := 0; i < 3; i++ {
		ok, err := tr.CheckQuota(ctx, userID, entitlements.TierFree)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = tr.IncrementUsage(ctx, userID)
		require.NoError(t, err)
	}

	ok, err := tr.CheckQuota(ctx, userID, entitlements.TierFree)
	require.NoError(t, err)
	assert.False(t, ok)
}
