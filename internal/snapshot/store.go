package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lab-group/labdash/internal/shared"
)

const redisKey = "snapshot:current"

// Store holds the currently published snapshot. Reads are served from
// memory; Redis keeps the document across restarts and shares it between
// the web process and the refresh worker. A nil Redis client degrades to
// memory-only, which the tests and file-backed development mode rely on.
type Store struct {
	mu      sync.RWMutex
	current *Snapshot

	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Current returns the published snapshot. Redis is consulted on every call
// so a refresh published by the worker becomes visible here immediately;
// the in-memory copy only short-circuits decoding when the Redis document
// is unchanged, and carries readers through Redis outages and key expiry.
// Returns shared.ErrNoSnapshot when nothing has been published anywhere.
func (s *Store) Current(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	cached := s.current
	s.mu.RUnlock()

	if s.client == nil {
		if cached == nil {
			return nil, shared.ErrNoSnapshot
		}
		return cached, nil
	}

	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		if cached != nil {
			return cached, nil
		}
		return nil, shared.ErrNoSnapshot
	}
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("load snapshot from redis: %w", err)
	}

	var loaded Snapshot
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	if cached != nil && loaded.GeneratedAt.Equal(cached.GeneratedAt) {
		return cached, nil
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = &loaded
	snap := s.current
	s.mu.Unlock()
	return snap, nil
}

// Publish validates and swaps in a new snapshot. The previous snapshot
// stays visible to in-flight readers; there is never a partial state.
func (s *Store) Publish(ctx context.Context, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if s.client != nil {
		raw, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := s.client.Set(ctx, redisKey, raw, s.ttl).Err(); err != nil {
			return fmt.Errorf("store snapshot in redis: %w", err)
		}
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return nil
}
