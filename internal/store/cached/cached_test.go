package cached

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfid-attendance/tracker/internal/lib/logger"
	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
	"rfid-attendance/tracker/internal/store/memory"
	"rfid-attendance/tracker/internal/store/storetest"
)

// countingStore counts UID lookups that reach the wrapped store.
// duringLookup, when set, runs after the wrapped store has answered.
type countingStore struct {
	store.Store
	uidLookups   int
	duringLookup func()
}

func (c *countingStore) GetUserByUID(ctx context.Context, uid string) (*model.User, error) {
	c.uidLookups++
	u, err := c.Store.GetUserByUID(ctx, uid)
	if c.duringLookup != nil {
		c.duringLookup()
	}
	return u, err
}

func newTestStore(t *testing.T) (*Store, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &countingStore{Store: memory.NewStore()}
	return New(inner, rdb, time.Minute, logger.Discard()), inner, mr
}

func bind(t *testing.T, s store.Store, name string, code int64, uid string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.CreateUser(ctx, model.User{Name: name, UserCode: code})
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, store.EnqueueRequest{UserCode: code, ScannerName: "door1"})
	require.NoError(t, err)
	_, err = s.BindCard(ctx, store.BindCardRequest{ScannerName: "door1", UID: uid, UserCode: code})
	require.NoError(t, err)
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _, _ := newTestStore(t)
		return s
	})
}

func TestLookupIsCached(t *testing.T) {
	s, inner, mr := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateScanner(ctx, model.Scanner{Name: "door1"})
	require.NoError(t, err)
	bind(t, s, "ann", 1001, "CARD-A")

	first, err := s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)
	second, err := s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.uidLookups)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, mr.Exists(keyPrefix+"CARD-A"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"CARD-A"))
}

func TestMissesAreNotCached(t *testing.T) {
	s, inner, mr := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetUserByUID(ctx, "NOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByUID(ctx, "NOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, 2, inner.uidLookups)
	assert.False(t, mr.Exists(keyPrefix+"NOPE"))
}

func TestRebindInvalidatesPreviousUID(t *testing.T) {
	s, _, mr := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateScanner(ctx, model.Scanner{Name: "door1"})
	require.NoError(t, err)
	bind(t, s, "ann", 1001, "CARD-A")

	_, err = s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)
	require.True(t, mr.Exists(keyPrefix+"CARD-A"))

	_, err = s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	require.NoError(t, err)
	res, err := s.BindCard(ctx, store.BindCardRequest{ScannerName: "door1", UID: "CARD-B", UserCode: 1001})
	require.NoError(t, err)
	assert.Equal(t, "CARD-A", res.PreviousUID)

	assert.False(t, mr.Exists(keyPrefix+"CARD-A"))
	_, err = s.GetUserByUID(ctx, "CARD-A")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRenameAndDeleteInvalidate(t *testing.T) {
	s, _, mr := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateScanner(ctx, model.Scanner{Name: "door1"})
	require.NoError(t, err)
	bind(t, s, "ann", 1001, "CARD-A")

	_, err = s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)

	_, err = s.RenameUser(ctx, 1001, "annie")
	require.NoError(t, err)
	assert.False(t, mr.Exists(keyPrefix+"CARD-A"))

	got, err := s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)
	assert.Equal(t, "annie", got.Name)

	require.NoError(t, s.DeleteUser(ctx, 1001))
	assert.False(t, mr.Exists(keyPrefix+"CARD-A"))
	_, err = s.GetUserByUID(ctx, "CARD-A")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisOutageFallsThrough(t *testing.T) {
	s, inner, mr := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateScanner(ctx, model.Scanner{Name: "door1"})
	require.NoError(t, err)
	bind(t, s, "ann", 1001, "CARD-A")

	mr.Close()

	got, err := s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), got.UserCode)
	assert.Equal(t, 1, inner.uidLookups)
	assert.Error(t, s.Ping(ctx))
}

func TestFillSkippedWhenInvalidatedDuringLookup(t *testing.T) {
	s, inner, mr := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateScanner(ctx, model.Scanner{Name: "door1"})
	require.NoError(t, err)
	bind(t, s, "ann", 1001, "CARD-A")

	// A rebind elsewhere invalidates CARD-A after the store answered but
	// before the answer reaches redis.
	inner.duringLookup = func() { s.forget(ctx, "CARD-A") }

	got, err := s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), got.UserCode)
	assert.False(t, mr.Exists(keyPrefix+"CARD-A"))

	inner.duringLookup = nil
	_, err = s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"CARD-A"))
	assert.Equal(t, 2, inner.uidLookups)
}
