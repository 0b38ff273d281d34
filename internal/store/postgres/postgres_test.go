package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"rfid-attendance/tracker/internal/store"
	"rfid-attendance/tracker/internal/store/storetest"
	"rfid-attendance/tracker/migrations"
)

// setupTestDB creates a new PostgreSQL store for testing.
// It skips tests if DATABASE_URL is not set and rebuilds the public schema
// from the embedded migrations before every test.
func setupTestDB(t *testing.T) *Store {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set, skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	require.NoError(t, err)
	defer pool.Close()

	schema, err := migrations.FS.ReadFile(migrations.InitUp)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		DROP SCHEMA public CASCADE;
		CREATE SCHEMA public;
		GRANT ALL ON SCHEMA public TO public;
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	s, err := NewStore(databaseURL)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestPostgresStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return setupTestDB(t)
	})
}

func TestPostgresStore_NameLengthCheck(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.pool.Exec(context.Background(), `insert into public.scanners (name) values ('much-too-long-name')`)
	require.Error(t, err)
	require.Contains(t, mapPgErr(err).Error(), "invalid_value")
}
