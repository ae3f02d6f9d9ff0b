// Package migrations holds the bun schema migrations for the trivia store.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
