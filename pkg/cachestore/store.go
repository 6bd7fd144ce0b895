// Package cachestore persists the query cache in postgres or redis.
package cachestore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chainsafe/mvm-bridge/pkg/config"
	"github.com/chainsafe/mvm-bridge/pkg/pgutil"
	"github.com/chainsafe/mvm-bridge/pkg/query"
)

// Open builds the store selected by cfg.Backend. The returned close func
// releases the underlying connection. The memory backend returns a nil store.
func Open(ctx context.Context, cfg *config.CacheConfig, logger *zap.Logger) (query.Store, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		return nil, func() error { return nil }, nil

	case "postgres":
		db, err := pgutil.ConnectDBContext(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Query cache persisted to postgres", zap.String("database", cfg.Database.Database))
		return NewPGStore(db), db.Close, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("Query cache persisted to redis", zap.String("addr", cfg.Redis.Addr))
		return NewRedisStore(client, cfg.Redis.Prefix), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
