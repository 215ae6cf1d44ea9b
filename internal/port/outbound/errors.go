package outbound

import "errors"

// Adapter-level sentinel errors. Domains translate these into their own
// error vocabulary before they reach the HTTP layer.
var (
	// ErrNotFound is returned by the versioned store for unknown repos,
	// refs, commits, and objects.
	ErrNotFound = errors.New("not found")

	// ErrObjectNotFound is returned by the blob store for missing keys.
	ErrObjectNotFound = errors.New("object not found")

	// ErrConflict is returned by the versioned store for merge/revert
	// conflicts and name collisions.
	ErrConflict = errors.New("conflict")

	// ErrUpstream is returned when a backing store keeps failing after
	// retries or its circuit breaker is open.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrCacheMiss is returned by caches for absent keys.
	ErrCacheMiss = errors.New("cache miss")
)
