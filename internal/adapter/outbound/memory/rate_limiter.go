package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kohakuhub/server/internal/port/outbound"
)

// rateLimiter implements outbound.RateLimiter with a sliding window
// of request timestamps per key.
type rateLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewRateLimiter creates an in-memory rate limiter.
func NewRateLimiter() outbound.RateLimiter {
	limiter := &rateLimiter{
		hits: make(map[string][]time.Time),
	}
	go limiter.cleanupLoop()
	return limiter
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	recent := r.prune(key, now, window)
	if len(recent) >= limit {
		return false, nil
	}
	r.hits[key] = append(recent, now)
	return true, nil
}

func (r *rateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := limit - len(r.prune(key, time.Now(), window))
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// prune drops hits older than the window. Caller holds the lock.
func (r *rateLimiter) prune(key string, now time.Time, window time.Duration) []time.Time {
	windowStart := now.Add(-window)
	recent := r.hits[key][:0]
	for _, hit := range r.hits[key] {
		if hit.After(windowStart) {
			recent = append(recent, hit)
		}
	}
	if len(recent) == 0 {
		delete(r.hits, key)
		return nil
	}
	r.hits[key] = recent
	return recent
}

func (r *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		r.mu.Lock()
		for key, hits := range r.hits {
			stale := true
			for _, hit := range hits {
				if now.Sub(hit) < time.Hour {
					stale = false
					break
				}
			}
			if stale {
				delete(r.hits, key)
			}
		}
		r.mu.Unlock()
	}
}

var _ outbound.RateLimiter = (*rateLimiter)(nil)
