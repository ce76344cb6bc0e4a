package memory

import (
	"context"
	"sync"
	"time"
)

type IdempotencyEntry struct {
	Key            string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// IdempotencyRepository keeps replayable responses in process memory.
type IdempotencyRepository struct {
	mu      sync.RWMutex
	entries map[string]IdempotencyEntry
	now     func() time.Time
}

func NewIdempotencyRepository(now func() time.Time) *IdempotencyRepository {
	if now == nil {
		now = time.Now
	}
	return &IdempotencyRepository{
		entries: make(map[string]IdempotencyEntry),
		now:     now,
	}
}

// Get returns nil when the key is unknown or expired.
func (r *IdempotencyRepository) Get(_ context.Context, key string) (*IdempotencyEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok || !e.ExpiresAt.After(r.now()) {
		return nil, nil
	}
	return &e, nil
}

func (r *IdempotencyRepository) Set(_ context.Context, entry *IdempotencyEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Key] = *entry
	return nil
}

// Cleanup removes expired entries and reports how many were dropped.
func (r *IdempotencyRepository) Cleanup(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed int64
	for k, e := range r.entries {
		if !e.ExpiresAt.After(now) {
			delete(r.entries, k)
			removed++
		}
	}
	return removed, nil
}
