package cachestore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/mvm-bridge/pkg/query"
)

type pgStore struct {
	db *bun.DB
}

// NewPGStore creates a postgres implementation of the cache store
func NewPGStore(db *bun.DB) query.Store {
	return &pgStore{db: db}
}

func (s *pgStore) Save(ctx context.Context, e query.Entry) error {
	_, err := s.db.NewInsert().
		Model(toEntryDao(e)).
		On("CONFLICT (key) DO UPDATE").
		Set("kind = EXCLUDED.kind").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Set("accessed_at = EXCLUDED.accessed_at").
		Set("cache_time_ns = EXCLUDED.cache_time_ns").
		Set("stale_time_ns = EXCLUDED.stale_time_ns").
		Set("invalidated = EXCLUDED.invalidated").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save cache entry %s: %w", e.Key, err)
	}
	return nil
}

func (s *pgStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*CacheEntryDao)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

func (s *pgStore) LoadAll(ctx context.Context) ([]query.Entry, error) {
	var daos []CacheEntryDao
	if err := s.db.NewSelect().Model(&daos).Order("key ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}

	entries := make([]query.Entry, 0, len(daos))
	for i := range daos {
		entries = append(entries, toEntry(&daos[i]))
	}
	return entries, nil
}
