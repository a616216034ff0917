package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	// 2 per minute plus 1 burst: three tokens, one back every 30s
	rl := NewRateLimiter(client, 2, 1)
	fixed := time.Date(2025, 1, 1, 10, 30, 15, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	assert.Equal(t, 3, rl.Limit())

	for i := range 3 {
		allowed, remaining, reset, err := rl.Allow(ctx, "agent:a1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
		assert.WithinDuration(t, fixed.Add(time.Duration(i+1)*30*time.Second), reset, 2*time.Millisecond)
	}

	allowed, remaining, reset, err := rl.Allow(ctx, "agent:a1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.WithinDuration(t, fixed.Add(30*time.Second), reset, 2*time.Millisecond)

	// other keys are independent
	allowed, _, _, err = rl.Allow(ctx, "agent:a2")
	require.NoError(t, err)
	assert.True(t, allowed)

	// a minute later two tokens have come back
	rl.now = func() time.Time { return fixed.Add(time.Minute) }
	for range 2 {
		allowed, _, _, err = rl.Allow(ctx, "agent:a1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _, _, err = rl.Allow(ctx, "agent:a1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRateLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	rl := NewRateLimiter(client, 1, 0)

	_, _, _, err := rl.Allow(ctx, "k")
	require.NoError(t, err)
	allowed, _, _, _ := rl.Allow(ctx, "k")
	assert.False(t, allowed)

	require.NoError(t, rl.Reset(ctx, "k"))
	allowed, _, _, err = rl.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}
