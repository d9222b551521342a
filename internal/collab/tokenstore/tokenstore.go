// Package tokenstore is the port to the distributed credential blacklist.
//
// Blacklisting a user is the only mechanism the privacy core needs to force
// universal logout: the authentication layer checks IsBlacklisted on every
// request and rejects blacklisted users immediately.
package tokenstore

import (
	"context"
	"sync"
	"time"
)

// Store is the blacklist port.
type Store interface {
	BlacklistUser(ctx context.Context, userID string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, userID string) (bool, error)
}

// InMemoryStore is the development and test implementation.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]time.Time)}
}

func (s *InMemoryStore) BlacklistUser(_ context.Context, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = time.Now().Add(ttl)
	return nil
}

func (s *InMemoryStore) IsBlacklisted(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.entries[userID]
	if !ok {
		return false, nil
	}
	return time.Now().Before(until), nil
}
