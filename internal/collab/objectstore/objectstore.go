// Package objectstore is the port to object storage for export bundles.
package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"memberhub/pkg/platform/sentinel"
)

// Store is the object storage port. Keys are unique per export, so writes
// need no cross-request locking.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	SignedURL(key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// InMemoryStore backs tests and development mode. Signed URLs are fake but
// carry a real expiry so expiry behavior is testable.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	expiry  map[string]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		objects: make(map[string][]byte),
		expiry:  make(map[string]time.Time),
	}
}

func (s *InMemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	return nil
}

func (s *InMemoryStore) SignedURL(key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", sentinel.ErrNotFound
	}
	expires := time.Now().Add(ttl)
	s.expiry[key] = expires
	return fmt.Sprintf("memory://%s?expires=%d", key, expires.Unix()), nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.expiry, key)
	return nil
}

// Get returns a stored object, honoring the signed URL expiry when one was
// issued. Test helper.
func (s *InMemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if exp, issued := s.expiry[key]; issued && time.Now().After(exp) {
		return nil, sentinel.ErrExpired
	}
	return data, nil
}
