package pgutil

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/chainsafe/mvm-bridge/pkg/config"
)

// SetupTestDB starts a PostgreSQL testcontainer and connects to it.
// The returned func closes the connection and terminates the container.
func SetupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("bridge_test"),
		postgres.WithUsername("bridge"),
		postgres.WithPassword("bridge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	terminate := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		terminate()
		t.Fatalf("failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "bridge",
		Password: "bridge",
		Database: "bridge_test",
		SSLMode:  "disable",
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second
	db, err := backoff.RetryWithData(func() (*bun.DB, error) {
		return ConnectDB(cfg)
	}, policy)
	if err != nil {
		terminate()
		t.Fatalf("failed to connect to test database: %v", err)
	}

	return db, func() {
		_ = db.Close()
		terminate()
	}
}

// AssertTableExists fails t when tableName is missing from the public schema
func AssertTableExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	if !tableExists(t, db, tableName) {
		t.Errorf("table %s does not exist", tableName)
	}
}

// AssertTableNotExists fails t when tableName is present in the public schema
func AssertTableNotExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	if tableExists(t, db, tableName) {
		t.Errorf("table %s should not exist", tableName)
	}
}

// AssertIndexExists fails t when indexName is missing
func AssertIndexExists(t *testing.T, db *bun.DB, indexName string) {
	t.Helper()
	if !queryExists(t, db, "SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = ?", indexName) {
		t.Errorf("index %s does not exist", indexName)
	}
}

// AssertIndexNotExists fails t when indexName is present
func AssertIndexNotExists(t *testing.T, db *bun.DB, indexName string) {
	t.Helper()
	if queryExists(t, db, "SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = ?", indexName) {
		t.Errorf("index %s should not exist", indexName)
	}
}

// AssertRowCount fails t unless tableName holds exactly expected rows
func AssertRowCount(t *testing.T, db *bun.DB, tableName string, expected int) {
	t.Helper()
	var count int
	err := db.NewSelect().
		TableExpr("?", bun.Ident(tableName)).
		ColumnExpr("COUNT(*)").
		Scan(context.Background(), &count)
	if err != nil {
		t.Fatalf("failed to count rows in %s: %v", tableName, err)
	}
	if count != expected {
		t.Errorf("table %s: expected %d rows, got %d", tableName, expected, count)
	}
}

func tableExists(t *testing.T, db *bun.DB, tableName string) bool {
	t.Helper()
	return queryExists(t, db, "SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ?", tableName)
}

func queryExists(t *testing.T, db *bun.DB, query string, arg string) bool {
	t.Helper()
	var exists bool
	err := db.NewSelect().
		ColumnExpr("EXISTS ("+query+")", arg).
		Scan(context.Background(), &exists)
	if err != nil {
		t.Fatalf("existence check failed: %v", err)
	}
	return exists
}
