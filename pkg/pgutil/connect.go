// Package pgutil connects to PostgreSQL through bun and carries the
// testcontainer helpers used by store tests.
package pgutil

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/chainsafe/mvm-bridge/pkg/config"
)

const pingTimeout = 10 * time.Second

// ConnectDB opens a bun handle for cfg and verifies it with a ping
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return ConnectDBContext(ctx, cfg)
}

// ConnectDBContext is ConnectDB bounded by ctx
func ConnectDBContext(ctx context.Context, cfg *config.DatabaseConfig) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil database config")
	}

	// functional options escape special characters in credentials
	connector := pgdriver.NewConnector(
		pgdriver.WithNetwork("tcp"),
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Database),
		pgdriver.WithInsecure(cfg.SSLMode == "" || cfg.SSLMode == "disable"),
	)
	db := bun.NewDB(sql.OpenDB(connector), pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Database, err)
	}

	log.Printf("connected to database %s", cfg.Database)
	return db, nil
}
