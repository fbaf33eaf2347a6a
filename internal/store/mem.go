package store

import (
	"sync"

	"github.com/sweeney/keyless-relay/internal/actions"
	"github.com/sweeney/keyless-relay/internal/logic"
)

// MemStore is an in-memory Store for tests and for running without a
// writable filesystem.
type MemStore struct {
	mu   sync.Mutex
	data actions.Mapping

	// Saves counts Save calls.
	Saves int

	// SaveError, if set, will be returned by Save.
	SaveError error
}

// NewMemStore creates a MemStore seeded with initial.
func NewMemStore(initial actions.Mapping) *MemStore {
	return &MemStore{data: copyMapping(initial)}
}

// Load returns a copy of the stored mapping.
func (s *MemStore) Load() (actions.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMapping(s.data), nil
}

// Save records one entry.
func (s *MemStore) Save(ch int, g logic.Gesture, a logic.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveError != nil {
		return s.SaveError
	}
	s.Saves++
	key := actions.Key{Channel: ch, Gesture: g}
	if a == logic.NoAction {
		delete(s.data, key)
	} else {
		s.data[key] = a
	}
	return nil
}
