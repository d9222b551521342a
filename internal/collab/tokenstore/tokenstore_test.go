package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklistUser(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	blacklisted, err := s.IsBlacklisted(ctx, "u-42")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, s.BlacklistUser(ctx, "u-42", time.Hour))

	blacklisted, err = s.IsBlacklisted(ctx, "u-42")
	require.NoError(t, err)
	assert.True(t, blacklisted)
}

func TestBlacklistExpires(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.BlacklistUser(ctx, "u-42", -time.Second))

	blacklisted, err := s.IsBlacklisted(ctx, "u-42")
	require.NoError(t, err)
	assert.False(t, blacklisted)
}
