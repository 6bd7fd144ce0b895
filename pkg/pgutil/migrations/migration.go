// Package migrations holds the helpers shared by the migration runner and
// the schema migrations it registers.
package migrations

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const usageText = `Usage:
  go run cmd/mvm-bridge/migrate/main.go [-config path] <command>

Commands:
  init    create the migration bookkeeping tables
  up      apply every pending migration
  down    roll back the last migration group
  status  print applied and pending migrations
`

// Usage prints command usage and exits
func Usage() {
	fmt.Fprint(os.Stderr, usageText)
	flag.PrintDefaults()
	os.Exit(2)
}

// Exitf prints the message followed by usage and exits
func Exitf(s string, args ...any) {
	fmt.Fprintf(os.Stderr, s+"\n", args...)
	Usage()
}

// CreateSchema creates the tables of models when missing
func CreateSchema(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		log.Println("creating table for", reflect.TypeOf(model))
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the tables of models when present
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		log.Println("dropping table for", reflect.TypeOf(model))
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", model, err)
		}
	}
	return nil
}

// CreateModelIndexes creates one idx_<table>_<column> index per column on
// the table of model.
func CreateModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	for _, column := range columns {
		name, err := IndexName(db, model, column)
		if err != nil {
			return err
		}
		if _, err := db.NewCreateIndex().Model(model).Index(name).Column(column).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return nil
}

// DropModelIndexes drops the indexes CreateModelIndexes created
func DropModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	for _, column := range columns {
		name, err := IndexName(db, model, column)
		if err != nil {
			return err
		}
		if _, err := db.NewDropIndex().Model(model).Index(name).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
	}
	return nil
}

// IndexName returns the index name used for column on the table of model
func IndexName(db bun.IDB, model any, column string) (string, error) {
	if model == nil {
		return "", fmt.Errorf("model cannot be nil")
	}
	table := db.NewCreateIndex().Model(model).GetTableName()
	if table == "" {
		return "", fmt.Errorf("failed to resolve table name for model %T", model)
	}
	table = strings.NewReplacer(`"`, "", ".", "_").Replace(table)
	return fmt.Sprintf("idx_%s_%s", table, column), nil
}

// RunMigrations executes the command in args[0] against migrator
func RunMigrations(migrator *migrate.Migrator, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided")
	}
	ctx := context.Background()

	switch args[0] {
	case "init":
		if err := migrator.Init(ctx); err != nil {
			return err
		}
		log.Println("migration table created")
		return nil

	case "up":
		return locked(ctx, migrator, func() error {
			group, err := migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				log.Println("database is up to date")
			} else {
				log.Printf("migrated to %s\n", group)
			}
			return nil
		})

	case "down":
		return locked(ctx, migrator, func() error {
			group, err := migrator.Rollback(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				log.Println("nothing to roll back")
			} else {
				log.Printf("rolled back %s\n", group)
			}
			return nil
		})

	case "status":
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		log.Printf("migrations: %s\n", ms)
		log.Printf("unapplied: %s\n", ms.Unapplied())
		log.Printf("last group: %s\n", ms.LastGroup())
		return nil

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func locked(ctx context.Context, migrator *migrate.Migrator, fn func() error) error {
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			log.Printf("failed to release migration lock: %v", err)
		}
	}()
	return fn()
}
