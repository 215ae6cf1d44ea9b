package outbound

import (
	"context"
	"time"
)

// ===== Cache Ports =====

// PrincipalCache short-circuits token-hash -> user lookups on the hot path.
// Misses return ErrCacheMiss.
type PrincipalCache interface {
	// GetUserID resolves a token hash to a user id.
	GetUserID(ctx context.Context, tokenHash string) (int64, error)

	// SetUserID caches a resolution for ttl.
	SetUserID(ctx context.Context, tokenHash string, userID int64, ttl time.Duration) error

	// Invalidate drops one cached token hash.
	Invalidate(ctx context.Context, tokenHash string) error
}

// ConfirmationStore holds short-lived confirmation tokens for destructive
// admin operations. Take is a consume: the token is valid exactly once.
type ConfirmationStore interface {
	// Put stores value under token for ttl.
	Put(ctx context.Context, token string, value string, ttl time.Duration) error

	// Take returns and deletes the value, or ErrCacheMiss.
	Take(ctx context.Context, token string) (string, error)
}

// RateLimiter enforces fixed-window request limits per key.
type RateLimiter interface {
	// Allow reports whether another request fits in the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Remaining returns how many requests are left in the current window.
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}
