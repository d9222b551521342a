package users

import (
	"context"
	"sync"

	"memberhub/pkg/platform/sentinel"
)

// InMemoryStore keeps the initial implementation lightweight and testable. It
// intentionally favors clarity over performance.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]User)}
}

func (s *InMemoryStore) Save(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return User{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) CompareAndSetStatus(_ context.Context, id string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if user.Status != from {
		return sentinel.ErrConflict
	}
	user.Status = to
	s.users[id] = user
	return nil
}
