package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"rfid-attendance/tracker/migrations"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

func mustMigrateUp(m *migrate.Migrate) {
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}

		panic(err)
	}

	fmt.Println("migrations applied successfully")
}

func mustMigrateDown(m *migrate.Migrate) {
	if err := m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to revert")
			return
		}

		panic(err)
	}

	fmt.Println("migrations reverted successfully")
}

// pgx5URL rewrites a postgres:// URL to the scheme the pgx/v5 driver
// registers under, adding the migrations table parameter.
func pgx5URL(databaseURL, table string) string {
	u := databaseURL
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(u, prefix) {
			u = "pgx5://" + strings.TrimPrefix(u, prefix)
			break
		}
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "x-migrations-table=" + table
}

func main() {
	var databaseURL, migrationsTable, migrationType string
	flag.StringVar(&migrationType, "migration-type", migrationUp, "migration type (up|down)")
	flag.StringVar(&databaseURL, "database-url", "", "postgres connection URL (defaults to TRACKER_DATABASE_URL or DATABASE_URL)")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "name of migrations table")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("TRACKER_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		panic("database-url is required")
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		panic(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(databaseURL, migrationsTable))
	if err != nil {
		panic(err)
	}
	defer m.Close()

	switch migrationType {
	case migrationUp:
		mustMigrateUp(m)
	case migrationDown:
		mustMigrateDown(m)
	default:
		panic("unknown migration type " + migrationType)
	}
}
