package ratelimit

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

const (
	DefaultMaxEntries    = 100_000
	DefaultSweepInterval = time.Minute
)

type memoryEntry struct {
	start  time.Time
	count  int
	window time.Duration
}

func (e *memoryEntry) end() time.Time {
	return e.start.Add(e.window)
}

// expiry records when the window of key started at some point ends. Items
// whose end no longer matches the entry are stale and skipped when popped.
type expiry struct {
	key string
	end time.Time
}

type expiryHeap []expiry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].end.Before(h[j].end) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)        { *h = append(*h, x.(expiry)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MemoryStore keeps windows in a process-local map behind one mutex.
// Expired windows are pruned periodically; when the map is full the window
// that ends first is evicted. Window ends are kept in a min-heap so neither
// costs a scan of the map.
type MemoryStore struct {
	mu            sync.Mutex
	entries       map[string]*memoryEntry
	expiries      expiryHeap
	maxEntries    int
	sweepInterval time.Duration
	lastSweep     time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type MemoryOption func(*MemoryStore)

func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:       make(map[string]*memoryEntry),
		maxEntries:    DefaultMaxEntries,
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.sweepInterval {
		s.pruneLocked(now)
		s.lastSweep = now
	}

	e, exists := s.entries[key]
	var current Window
	if exists {
		current = Window{Start: e.start, Count: e.count}
	}
	next := advance(current, exists, limit, window, now)

	if !exists {
		if len(s.entries) >= s.maxEntries {
			s.pruneLocked(now)
			if len(s.entries) >= s.maxEntries {
				s.evictOldestLocked()
			}
		}
		e = &memoryEntry{}
		s.entries[key] = e
	}
	restarted := !exists || !e.start.Equal(next.Start) || e.window != window
	e.start = next.Start
	e.count = next.Count
	e.window = window
	if restarted {
		s.pushExpiryLocked(key, e.end())
	}

	return next, nil
}

// Prune drops windows that have ended at now and returns how many were removed.
func (s *MemoryStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(now)
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) pushExpiryLocked(key string, end time.Time) {
	// Stale items pile up when windows restart faster than they are pruned.
	if len(s.expiries) >= 2*s.maxEntries {
		s.rebuildExpiriesLocked()
	}
	heap.Push(&s.expiries, expiry{key: key, end: end})
}

func (s *MemoryStore) rebuildExpiriesLocked() {
	items := make(expiryHeap, 0, len(s.entries))
	for key, e := range s.entries {
		items = append(items, expiry{key: key, end: e.end()})
	}
	heap.Init(&items)
	s.expiries = items
}

// current reports whether item still describes the live window of its key.
func (s *MemoryStore) current(item expiry) bool {
	e, ok := s.entries[item.key]
	return ok && e.end().Equal(item.end)
}

func (s *MemoryStore) pruneLocked(now time.Time) int {
	removed := 0
	for len(s.expiries) > 0 && !now.Before(s.expiries[0].end) {
		item := heap.Pop(&s.expiries).(expiry)
		if s.current(item) {
			delete(s.entries, item.key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) evictOldestLocked() {
	for len(s.expiries) > 0 {
		item := heap.Pop(&s.expiries).(expiry)
		if s.current(item) {
			delete(s.entries, item.key)
			return
		}
	}
}

// StartJanitor prunes expired windows every interval until Close is called.
func (s *MemoryStore) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = s.sweepInterval
	}
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Prune(time.Now())
			case <-stop:
				return
			}
		}
	}()
}

// Close stops the janitor. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()
	if stop == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(stop) })
	<-done
	return nil
}
