package audit

import (
	"context"
	"sync"

	"memberhub/pkg/platform/sentinel"
)

// InMemoryStore keeps entries in insertion order. Used in tests and in
// development mode.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]int)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Actor == actor {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateEntry(_ context.Context, id string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Only the actor, metadata, and retention stamp are writable; everything
	// else is immutable.
	s.entries[idx].Actor = entry.Actor
	s.entries[idx].Metadata = entry.Metadata
	s.entries[idx].RetentionUntil = entry.RetentionUntil
	return nil
}

// All returns a copy of every entry. Test helper.
func (s *InMemoryStore) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
