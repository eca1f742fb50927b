package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ManuelReschke/Arcana/internal/pkg/entitlements"
)

// Registry hands out one limiter per policy and limit, all sharing a store.
// Counters are namespaced by policy name.
type Registry struct {
	store Store
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*Limiter
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		limiters: make(map[string]*Limiter),
	}
}

// SetClock replaces the clock of all current and future limiters.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	for _, l := range r.limiters {
		l.Now = now
	}
}

// Limiter returns the limiter for policy p at tier.
func (r *Registry) Limiter(p Policy, tier entitlements.Tier) *Limiter {
	limit := p.LimitFor(tier)
	id := p.Name + "/" + strconv.Itoa(limit)

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[id]; ok {
		return l
	}
	l := NewLimiter(r.store, limit, p.Window)
	l.Now = r.now
	r.limiters[id] = l
	return l
}

// Check counts one request for key under policy p.
func (r *Registry) Check(ctx context.Context, p Policy, tier entitlements.Tier, key string) (Result, error) {
	return r.Limiter(p, tier).CheckLimit(ctx, p.Name+":"+key)
}
