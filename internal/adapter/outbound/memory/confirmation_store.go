// Package memory provides in-process implementations of the cache ports
// for deployments that run without Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kohakuhub/server/internal/port/outbound"
)

type confirmationEntry struct {
	value     string
	expiresAt time.Time
}

// confirmationStore implements outbound.ConfirmationStore.
type confirmationStore struct {
	mu      sync.Mutex
	entries map[string]confirmationEntry
}

// NewConfirmationStore creates an in-memory confirmation token store.
func NewConfirmationStore() outbound.ConfirmationStore {
	store := &confirmationStore{
		entries: make(map[string]confirmationEntry),
	}
	go store.cleanupLoop()
	return store
}

func (s *confirmationStore) Put(ctx context.Context, token, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = confirmationEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Take consumes the token so a replayed confirmation fails.
func (s *confirmationStore) Take(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return "", outbound.ErrCacheMiss
	}
	delete(s.entries, token)
	if time.Now().After(entry.expiresAt) {
		return "", outbound.ErrCacheMiss
	}
	return entry.value, nil
}

func (s *confirmationStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		s.mu.Lock()
		for token, entry := range s.entries {
			if now.After(entry.expiresAt) {
				delete(s.entries, token)
			}
		}
		s.mu.Unlock()
	}
}

var _ outbound.ConfirmationStore = (*confirmationStore)(nil)
