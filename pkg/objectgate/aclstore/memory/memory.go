package memory

import (
	"context"
	"sync"
)

// Store is an in-memory implementation of the objectgate.ACLStore interface
type Store struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New creates a new in-memory ACL store
func New() *Store {
	return &Store{
		entries: make(map[string]string),
	}
}

// Get returns the serialized ACL stored under key
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[key]
	return value, ok, nil
}

// Set stores the serialized ACL under key
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value
	return nil
}

// Delete removes key; absence is not an error
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len returns the number of stored entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
