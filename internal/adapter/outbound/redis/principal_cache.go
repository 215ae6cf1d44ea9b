package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kohakuhub/server/internal/port/outbound"
)

const principalKeyPrefix = "principal:"

// principalCache implements outbound.PrincipalCache.
type principalCache struct {
	client redis.UniversalClient
}

// NewPrincipalCache creates a Redis-backed principal cache.
func NewPrincipalCache(client redis.UniversalClient) outbound.PrincipalCache {
	return &principalCache{client: client}
}

func (c *principalCache) GetUserID(ctx context.Context, tokenHash string) (int64, error) {
	val, err := c.client.Get(ctx, principalKeyPrefix+tokenHash).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, outbound.ErrCacheMiss
		}
		return 0, err
	}
	return val, nil
}

func (c *principalCache) SetUserID(ctx context.Context, tokenHash string, userID int64, ttl time.Duration) error {
	return c.client.Set(ctx, principalKeyPrefix+tokenHash, userID, ttl).Err()
}

func (c *principalCache) Invalidate(ctx context.Context, tokenHash string) error {
	return c.client.Del(ctx, principalKeyPrefix+tokenHash).Err()
}

var _ outbound.PrincipalCache = (*principalCache)(nil)
