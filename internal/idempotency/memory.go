package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and tests.
// Expired keys are pruned by Reserve at most once per ttl.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	lastPrune time.Time
}

// NewMemoryStore creates a MemoryStore whose keys expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]memoryEntry),
		ttl:       ttl,
		now:       time.Now,
		lastPrune: time.Now(),
	}
}

func (s *MemoryStore) Reserve(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastPrune) >= s.ttl {
		s.prune(now)
	}
	if entry, ok := s.entries[key]; ok && now.Before(entry.expires) {
		if entry.value == pendingMarker {
			return "", ErrInFlight
		}
		return entry.value, nil
	}
	s.entries[key] = memoryEntry{value: pendingMarker, expires: now.Add(s.ttl)}
	return "", nil
}

func (s *MemoryStore) Complete(_ context.Context, key, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: result, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) prune(now time.Time) {
	for key, entry := range s.entries {
		if !now.Before(entry.expires) {
			delete(s.entries, key)
		}
	}
	s.lastPrune = now
}
