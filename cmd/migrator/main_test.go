package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPgx5URL(t *testing.T) {
	assert.Equal(t,
		"pgx5://u:p@db:5432/tracker?x-migrations-table=schema_migrations",
		pgx5URL("postgres://u:p@db:5432/tracker", "schema_migrations"))
	assert.Equal(t,
		"pgx5://db/tracker?sslmode=disable&x-migrations-table=m",
		pgx5URL("postgresql://db/tracker?sslmode=disable", "m"))
}
