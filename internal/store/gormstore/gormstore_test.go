package gormstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
	"rfid-attendance/tracker/internal/store/storetest"
)

// newTestStore opens a private in-memory sqlite database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.ErrorContains(t, err, "unsupported gorm driver")
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNextPendingOrdersBySequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateScanner(ctx, model.Scanner{Name: "door1"})
	require.NoError(t, err)

	var first string
	for i, code := range []int64{30, 10, 20} {
		_, err := s.CreateUser(ctx, model.User{Name: "user", UserCode: code})
		require.NoError(t, err)
		e, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: code, ScannerName: "door1"})
		require.NoError(t, err)
		if i == 0 {
			first = e.ID
		}
	}

	p, err := s.NextPending(ctx, "door1")
	require.NoError(t, err)
	assert.Equal(t, first, p.EntryID)
	assert.Equal(t, int64(30), p.UserCode)
}
