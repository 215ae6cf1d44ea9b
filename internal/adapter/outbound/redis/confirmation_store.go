package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kohakuhub/server/internal/port/outbound"
)

const confirmationKeyPrefix = "confirm:"

// confirmationStore implements outbound.ConfirmationStore.
type confirmationStore struct {
	client redis.UniversalClient
}

// NewConfirmationStore creates a Redis-backed confirmation token store.
func NewConfirmationStore(client redis.UniversalClient) outbound.ConfirmationStore {
	return &confirmationStore{client: client}
}

func (s *confirmationStore) Put(ctx context.Context, token, value string, ttl time.Duration) error {
	return s.client.Set(ctx, confirmationKeyPrefix+token, value, ttl).Err()
}

// Take consumes the token atomically so a replayed confirmation fails.
func (s *confirmationStore) Take(ctx context.Context, token string) (string, error) {
	val, err := s.client.GetDel(ctx, confirmationKeyPrefix+token).Result()
	if err != nil {
		if err == redis.Nil {
			return "", outbound.ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

var _ outbound.ConfirmationStore = (*confirmationStore)(nil)
