package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps rate limit entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Get returns the entry for an origin, if present.
func (s *MemoryStore) Get(_ context.Context, origin string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[origin]
	return entry, ok, nil
}

// Save stores the entry keyed by its origin.
func (s *MemoryStore) Save(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Origin] = entry
	return nil
}

// Delete removes the entry for an origin.
func (s *MemoryStore) Delete(_ context.Context, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, origin)
	return nil
}

// PurgeIdle removes entries whose last attempt predates the cutoff.
func (s *MemoryStore) PurgeIdle(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for origin, entry := range s.entries {
		if entry.LastAttemptAt.Before(before) {
			delete(s.entries, origin)
			purged++
		}
	}
	return purged, nil
}
