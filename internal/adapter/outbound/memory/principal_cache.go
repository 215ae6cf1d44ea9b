package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kohakuhub/server/internal/port/outbound"
)

type principalEntry struct {
	userID    int64
	expiresAt time.Time
}

// principalCache implements outbound.PrincipalCache.
type principalCache struct {
	mu      sync.RWMutex
	entries map[string]principalEntry
}

// NewPrincipalCache creates an in-memory principal cache.
func NewPrincipalCache() outbound.PrincipalCache {
	cache := &principalCache{
		entries: make(map[string]principalEntry),
	}
	go cache.cleanupLoop()
	return cache
}

func (c *principalCache) GetUserID(ctx context.Context, tokenHash string) (int64, error) {
	c.mu.RLock()
	entry, ok := c.entries[tokenHash]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, outbound.ErrCacheMiss
	}
	return entry.userID, nil
}

func (c *principalCache) SetUserID(ctx context.Context, tokenHash string, userID int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tokenHash] = principalEntry{
		userID:    userID,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (c *principalCache) Invalidate(ctx context.Context, tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tokenHash)
	return nil
}

func (c *principalCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for hash, entry := range c.entries {
			if now.After(entry.expiresAt) {
				delete(c.entries, hash)
			}
		}
		c.mu.Unlock()
	}
}

var _ outbound.PrincipalCache = (*principalCache)(nil)
