package cache

import (
	"context"
	"sync"
	"time"

	"github.com/toybox/backend/internal/domain/shared"
)

// MemoryIdempotencyStore is a process-local IdempotencyStore for
// single-instance deployments and tests. State is lost on restart; rely
// on the state-conditional webhook handlers for correctness across
// restarts.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryIdempotencyStore creates an empty in-memory store
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]time.Time)}
}

// MarkProcessed marks an event as processed with a TTL
func (s *MemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	if _, ok := s.entries[eventID]; ok {
		return false, nil
	}
	s.entries[eventID] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed checks if an event has already been processed
func (s *MemoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.entries[eventID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.entries, eventID)
		return false, nil
	}
	return true, nil
}

// Close releases the store
func (s *MemoryIdempotencyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]time.Time)
	return nil
}

func (s *MemoryIdempotencyStore) evictExpired() {
	now := time.Now()
	for k, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, k)
		}
	}
}

var _ shared.IdempotencyStore = (*MemoryIdempotencyStore)(nil)
