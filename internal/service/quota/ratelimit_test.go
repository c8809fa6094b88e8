package quota

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		allowed, _ := rl.TryAcquire(userID)
		require.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, retryAfter := rl.TryAcquire(userID)
	assert.False(t, allowed)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, time.Minute)
	rl.now = func() time.Time { return current }
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		allowed, _ := rl.TryAcquire(userID)
		require.True(t, allowed)
	}
	allowed, _ := rl.TryAcquire(userID)
	require.False(t, allowed)

	// Once the oldest timestamp leaves the window, one slot frees up.
	current = current.Add(61 * time.Second)
	allowed, _ = rl.TryAcquire(userID)
	assert.True(t, allowed)
}

func TestRateLimiterIsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	first := uuid.New()
	second := uuid.New()

	allowed, _ := rl.TryAcquire(first)
	require.True(t, allowed)
	allowed, _ = rl.TryAcquire(first)
	require.False(t, allowed)

	allowed, _ = rl.TryAcquire(second)
	assert.True(t, allowed, "another user's window must be independent")
}

func TestRateLimiterRetryAfterCountsDown(t *testing.T) {
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return current }
	userID := uuid.New()

	allowed, _ := rl.TryAcquire(userID)
	require.True(t, allowed)

	current = current.Add(20 * time.Second)
	allowed, retryAfter := rl.TryAcquire(userID)
	require.False(t, allowed)
	assert.Equal(t, 40, retryAfter)
}

func TestRateLimiterCleanupDropsIdleUsers(t *testing.T) {
	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return current }

	rl.TryAcquire(uuid.New())
	rl.TryAcquire(uuid.New())
	require.Len(t, rl.requests, 2)

	current = current.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.requests)
}
