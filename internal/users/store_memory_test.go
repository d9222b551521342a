package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/pkg/platform/sentinel"
)

func TestCompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Save(ctx, User{ID: "u-1", Email: "a@example.com", Status: StatusActive}))

	require.NoError(t, s.CompareAndSetStatus(ctx, "u-1", StatusActive, StatusDeletionInProgress))

	user, err := s.FindByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDeletionInProgress, user.Status)
}

func TestCompareAndSetStatusConflict(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Save(ctx, User{ID: "u-1", Email: "a@example.com", Status: StatusDeletionInProgress}))

	err := s.CompareAndSetStatus(ctx, "u-1", StatusActive, StatusDeletionInProgress)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestCompareAndSetStatusUnknownUser(t *testing.T) {
	s := NewInMemoryStore()
	err := s.CompareAndSetStatus(context.Background(), "missing", StatusActive, StatusDeleted)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCompareAndSetStatusWinsOnce(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Save(ctx, User{ID: "u-1", Email: "a@example.com", Status: StatusActive}))

	first := s.CompareAndSetStatus(ctx, "u-1", StatusActive, StatusDeletionInProgress)
	second := s.CompareAndSetStatus(ctx, "u-1", StatusActive, StatusDeletionInProgress)

	require.NoError(t, first)
	assert.ErrorIs(t, second, sentinel.ErrConflict)
}
