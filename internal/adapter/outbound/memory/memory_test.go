package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/server/internal/port/outbound"
)

func TestConfirmationStoreTakeConsumesToken(t *testing.T) {
	ctx := context.Background()
	store := NewConfirmationStore()

	require.NoError(t, store.Put(ctx, "tok-1", "delete:alice/m1", time.Minute))

	value, err := store.Take(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "delete:alice/m1", value)

	_, err = store.Take(ctx, "tok-1")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)
}

func TestConfirmationStoreUnknownToken(t *testing.T) {
	store := NewConfirmationStore()

	_, err := store.Take(context.Background(), "missing")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)
}

func TestConfirmationStoreExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := NewConfirmationStore()

	require.NoError(t, store.Put(ctx, "tok-2", "value", -time.Second))

	_, err := store.Take(ctx, "tok-2")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)
}

func TestPrincipalCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewPrincipalCache()

	_, err := cache.GetUserID(ctx, "hash-1")
	require.ErrorIs(t, err, outbound.ErrCacheMiss)

	require.NoError(t, cache.SetUserID(ctx, "hash-1", 42, time.Minute))

	userID, err := cache.GetUserID(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	require.NoError(t, cache.Invalidate(ctx, "hash-1"))

	_, err = cache.GetUserID(ctx, "hash-1")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)
}

func TestPrincipalCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewPrincipalCache()

	require.NoError(t, cache.SetUserID(ctx, "hash-2", 7, -time.Second))

	_, err := cache.GetUserID(ctx, "hash-2")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)
}

func TestRateLimiterEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.Allow(ctx, "user:1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different key counts in its own window.
	ok, err = limiter.Allow(ctx, "user:2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiterRemaining(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter()

	remaining, err := limiter.Remaining(ctx, "user:3", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	for i := 0; i < 2; i++ {
		_, err := limiter.Allow(ctx, "user:3", 5, time.Minute)
		require.NoError(t, err)
	}

	remaining, err = limiter.Remaining(ctx, "user:3", 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter()

	window := 20 * time.Millisecond
	ok, err := limiter.Allow(ctx, "user:4", 1, window)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, "user:4", 1, window)
	require.NoError(t, err)
	require.False(t, ok)

	time.Sleep(2 * window)

	ok, err = limiter.Allow(ctx, "user:4", 1, window)
	require.NoError(t, err)
	assert.True(t, ok)
}
