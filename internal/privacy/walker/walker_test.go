package walker

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/internal/records"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// failingCollection always fails to list.
type failingCollection struct{}

func (failingCollection) ListByUser(context.Context, string) ([]records.Document, error) {
	return nil, errors.New("connection refused")
}

func (failingCollection) Update(context.Context, string, records.Document) error {
	return errors.New("connection refused")
}

func seededRegistry(t *testing.T) (*records.Registry, map[string]*records.InMemoryCollection) {
	t.Helper()
	registry := records.NewRegistry()
	colls := make(map[string]*records.InMemoryCollection)
	for _, rt := range []string{records.TypeProfile, records.TypeComment} {
		c := records.NewInMemoryCollection()
		colls[rt] = c
		registry.Register(rt, c)
	}
	colls[records.TypeProfile].Put(records.Document{"id": "p-1", "user_id": "u-42", "name": "Sam"})
	colls[records.TypeComment].Put(records.Document{"id": "c-1", "user_id": "u-42", "body": "hi"})
	colls[records.TypeComment].Put(records.Document{"id": "c-2", "user_id": "u-42", "body": "bye"})
	colls[records.TypeComment].Put(records.Document{"id": "c-3", "user_id": "other", "body": "not mine"})
	return registry, colls
}

func TestWalkVisitsOnlyTheUsersRecords(t *testing.T) {
	registry, _ := seededRegistry(t)
	w := New(registry, discard(), nil)

	var visited []string
	result, err := w.Walk(context.Background(), "u-42", func(_ string, doc records.Document) (records.Document, error) {
		visited = append(visited, doc.ID())
		return nil, nil
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"p-1", "c-1", "c-2"}, visited)
	assert.Equal(t, map[string]int{records.TypeProfile: 1, records.TypeComment: 2}, result.Counts)
	assert.Empty(t, result.Errors)
}

func TestWalkPersistsMutations(t *testing.T) {
	registry, colls := seededRegistry(t)
	w := New(registry, discard(), nil)

	_, err := w.Walk(context.Background(), "u-42", func(_ string, doc records.Document) (records.Document, error) {
		out := doc.Clone()
		out["name"] = "[REDACTED]"
		return out, nil
	}, nil)
	require.NoError(t, err)

	doc, ok := colls[records.TypeProfile].Get("p-1")
	require.True(t, ok)
	assert.Equal(t, "[REDACTED]", doc["name"])
}

func TestWalkNilResultMeansNoMutation(t *testing.T) {
	registry, colls := seededRegistry(t)
	w := New(registry, discard(), nil)

	_, err := w.Walk(context.Background(), "u-42", func(string, records.Document) (records.Document, error) {
		return nil, nil
	}, nil)
	require.NoError(t, err)

	doc, ok := colls[records.TypeProfile].Get("p-1")
	require.True(t, ok)
	assert.Equal(t, "Sam", doc["name"])
}

func TestWalkContinuesPastPerRecordFailures(t *testing.T) {
	registry, _ := seededRegistry(t)
	w := New(registry, discard(), nil)

	var visited []string
	result, err := w.Walk(context.Background(), "u-42", func(_ string, doc records.Document) (records.Document, error) {
		if doc.ID() == "c-1" {
			return nil, errors.New("malformed record")
		}
		visited = append(visited, doc.ID())
		return nil, nil
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"p-1", "c-2"}, visited)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, records.TypeComment, result.Errors[0].ResourceType)
	assert.Equal(t, "c-1", result.Errors[0].RecordID)
	assert.False(t, result.HasCollectionFailure())
	assert.Equal(t, []string{records.TypeComment}, result.FailedTypes())
}

func TestWalkFailureOnIdLessRecordIsNotACollectionFailure(t *testing.T) {
	registry, colls := seededRegistry(t)
	colls[records.TypeComment].Put(records.Document{"user_id": "u-42", "body": "no id"})
	w := New(registry, discard(), nil)

	result, err := w.Walk(context.Background(), "u-42", func(_ string, doc records.Document) (records.Document, error) {
		if doc.ID() == "" {
			return nil, errors.New("document has no id")
		}
		return nil, nil
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Empty(t, result.Errors[0].RecordID)
	assert.False(t, result.Errors[0].CollectionFailed)
	assert.False(t, result.HasCollectionFailure())
}

func TestWalkCollectionFailureIsRecordedAndWalkContinues(t *testing.T) {
	registry, _ := seededRegistry(t)
	registry.Register("broken", failingCollection{})
	w := New(registry, discard(), nil)

	result, err := w.Walk(context.Background(), "u-42", func(string, records.Document) (records.Document, error) {
		return nil, nil
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.HasCollectionFailure())
	assert.Equal(t, 1, result.Counts[records.TypeProfile])
	assert.Equal(t, 2, result.Counts[records.TypeComment])
}

func TestWalkTypeFilter(t *testing.T) {
	registry, _ := seededRegistry(t)
	w := New(registry, discard(), nil)

	result, err := w.Walk(context.Background(), "u-42", func(string, records.Document) (records.Document, error) {
		return nil, nil
	}, func(rt string) bool { return rt == records.TypeComment })
	require.NoError(t, err)

	assert.Equal(t, map[string]int{records.TypeComment: 2}, result.Counts)
}
