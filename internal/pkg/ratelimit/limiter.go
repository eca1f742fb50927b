package ratelimit

import (
	"context"
	"fmt"
	"time"
)

const DefaultWindow = 60 * time.Second

// Result is the outcome of one CheckLimit call.
type Result struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetAt           time.Time
	RetryAfterSeconds int
}

// Limiter is a fixed-window counter. Bursts of up to twice the limit are
// admitted across a window boundary.
type Limiter struct {
	Store  Store
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		Store:  store,
		Limit:  limit,
		Window: window,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// CheckLimit counts one request against key.
func (l *Limiter) CheckLimit(ctx context.Context, key string) (Result, error) {
	now := l.now()
	w, err := l.Store.Take(ctx, key, l.Limit, l.Window, now)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: check %q: %w", key, err)
	}

	res := Result{
		Allowed: w.Allowed,
		Limit:   l.Limit,
		ResetAt: w.Start.Add(l.Window),
	}
	if w.Allowed {
		res.Remaining = l.Limit - w.Count
		return res, nil
	}
	res.RetryAfterSeconds = ceilSeconds(res.ResetAt.Sub(now))
	return res, nil
}

// ResetUnix is ResetAt in unix seconds, rounded up so it never precedes
// the actual reset.
func (r Result) ResetUnix() int64 {
	secs := r.ResetAt.Unix()
	if r.ResetAt.Nanosecond() > 0 {
		secs++
	}
	return secs
}

func (l *Limiter) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now()
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
