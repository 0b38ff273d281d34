// Package migrations embeds the postgres schema so the migrator binary and
// the store tests apply the same files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// InitUp is the first migration, exposed for tests that rebuild the schema
// without going through golang-migrate.
const InitUp = "000001_init.up.sql"
