package main

import (
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/mvm-bridge/pkg/config"
	"github.com/chainsafe/mvm-bridge/pkg/migrations/clientdb"
	"github.com/chainsafe/mvm-bridge/pkg/pgutil"
	mghelper "github.com/chainsafe/mvm-bridge/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(&cfg.Cache.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for query cache database (%s)...\n", cfg.Cache.Database.Database)

	migrator := migrate.NewMigrator(db, clientdb.Migrations)
	if err := mghelper.RunMigrations(migrator, flag.Args()...); err != nil {
		mghelper.Exitf(err.Error())
	}
}
