package records

import (
	"context"
	"sync"

	"memberhub/pkg/platform/sentinel"
)

// InMemoryCollection holds documents for one resource type. Used in tests and
// in development mode when no Postgres DSN is configured.
type InMemoryCollection struct {
	mu   sync.RWMutex
	docs map[string]Document
	ids  []string
}

func NewInMemoryCollection() *InMemoryCollection {
	return &InMemoryCollection{docs: make(map[string]Document)}
}

// Put inserts or replaces a document. Test and seed helper.
func (c *InMemoryCollection) Put(doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := doc.ID()
	if _, exists := c.docs[id]; !exists {
		c.ids = append(c.ids, id)
	}
	c.docs[id] = doc.Clone()
}

func (c *InMemoryCollection) ListByUser(_ context.Context, userRef string) ([]Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Document
	for _, id := range c.ids {
		if doc := c.docs[id]; doc.UserRef() == userRef {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (c *InMemoryCollection) Update(_ context.Context, docID string, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[docID]; !ok {
		return sentinel.ErrNotFound
	}
	c.docs[docID] = doc.Clone()
	return nil
}

// Get returns a copy of a document by ID. Test helper.
func (c *InMemoryCollection) Get(docID string) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[docID]
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}
