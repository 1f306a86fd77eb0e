package scrap

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps archives in memory. Used by tests and throwaway
// sessions where persistence across restarts is not wanted.
type MemoryStore struct {
	mu       sync.RWMutex
	archives map[string][]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{archives: make(map[string][]Entry)}
}

// Load returns a copy of the entries for key, nil if absent.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.archives[key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(entries), nil
}

// Save replaces the entries for key, dropping the archive when empty.
func (s *MemoryStore) Save(ctx context.Context, key string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entries) == 0 {
		delete(s.archives, key)
		return nil
	}
	s.archives[key] = slices.Clone(entries)
	return nil
}

// Delete removes the archive for key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.archives, key)
	return nil
}

// Keys lists keys with stored archives.
func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.archives))
	for k := range s.archives {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Close does nothing for the memory backend.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
