package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/rag-agent/internal/domain"
)

func TestAgentCache(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	cache := NewAgentCache(client)

	miss, err := cache.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, miss)

	agent := &domain.Agent{
		ID:          uuid.New(),
		Name:        "docs",
		TokenHash:   "abc123",
		TokenCipher: "cipher",
		TokenHint:   "1234****abcd",
		Files:       []domain.AgentFile{{Path: "uploads/x.txt", FileType: domain.FileTypeTXT, OriginalName: "x.txt", Chunks: 3}},
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, cache.Set(ctx, agent))

	got, err := cache.Get(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, agent.ID, got.ID)
	assert.Equal(t, "cipher", got.TokenCipher)
	assert.Equal(t, agent.Files, got.Files)

	mr.FastForward(agentCacheTTL + time.Second)
	expired, err := cache.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, expired)

	require.NoError(t, cache.Set(ctx, agent))
	require.NoError(t, cache.Invalidate(ctx, "abc123"))
	gone, err := cache.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
