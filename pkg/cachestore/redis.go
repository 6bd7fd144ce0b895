package cachestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chainsafe/mvm-bridge/pkg/query"
)

type redisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a redis implementation of the cache store.
// All entries live in a single hash named "<prefix>:query-cache".
func NewRedisStore(client redis.UniversalClient, prefix string) query.Store {
	return &redisStore{client: client, key: HashKey(prefix)}
}

// HashKey returns the redis hash holding the cache for prefix
func HashKey(prefix string) string {
	return prefix + ":query-cache"
}

func (s *redisStore) Save(ctx context.Context, e query.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", e.Key, err)
	}
	if err := s.client.HSet(ctx, s.key, e.Key, payload).Err(); err != nil {
		return fmt.Errorf("failed to save cache entry %s: %w", e.Key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.key, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) LoadAll(ctx context.Context) ([]query.Entry, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}

	entries := make([]query.Entry, 0, len(raw))
	for field, value := range raw {
		var e query.Entry
		if err := json.Unmarshal([]byte(value), &e); err != nil {
			return nil, fmt.Errorf("failed to decode cache entry %s: %w", field, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
