package clientdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/mvm-bridge/pkg/cachestore"
	mghelper "github.com/chainsafe/mvm-bridge/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating query_cache table...")
		if err := mghelper.CreateSchema(ctx, db, &cachestore.CacheEntryDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &cachestore.CacheEntryDao{}, "kind")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping query_cache table...")
		if err := mghelper.DropModelIndexes(ctx, db, &cachestore.CacheEntryDao{}, "kind"); err != nil {
			return err
		}
		return mghelper.DropTables(ctx, db, &cachestore.CacheEntryDao{})
	})
}
