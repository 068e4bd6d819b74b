package cache

import (
	"context"
	"sync"
	"time"

	"github.com/barn/onboarding/internal/domain/shared"
)

// dedupeEntry is a seen delivery ID with its expiry
type dedupeEntry struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore implements the dedupe ledger as a process-local
// map. State is not shared across instances, so in a multi-instance
// deployment a duplicate delivery may still reach the engine; the engine's
// idempotent reconciliation makes that harmless.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]dedupeEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

// NewInMemoryIdempotencyStore creates an in-memory dedupe ledger with a
// background sweep of expired entries.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]dedupeEntry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// MarkProcessed records a delivery ID with a TTL, returning false when the
// ID was already present and unexpired.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[eventID]; exists && time.Now().Before(e.expiresAt) {
		return false, nil
	}

	s.entries[eventID] = dedupeEntry{
		expiresAt: time.Now().Add(ttl),
	}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for eventID, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, eventID)
		}
	}
}

// Size returns the number of tracked delivery IDs
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
