// Package clientdb holds all the migrations for the bridge client database
package clientdb

import "github.com/uptrace/bun/migrate"

// Migrations is the registry of client database migrations
var Migrations = migrate.NewMigrations()
