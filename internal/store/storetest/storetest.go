// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

// Factory returns an empty store. Cleanup belongs on t.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateUser", testCreateUser},
		{"RenameAndDeleteUser", testRenameAndDeleteUser},
		{"Scanners", testScanners},
		{"EnqueueRejectsDuplicatePair", testEnqueueDuplicate},
		{"EnqueueUnknownReferences", testEnqueueNotFound},
		{"NextPendingIsFIFO", testNextPendingFIFO},
		{"ResolveIsIdempotent", testResolveIdempotent},
		{"BindCard", testBindCard},
		{"BindCardNotQueued", testBindNotQueued},
		{"BindCardUIDConflict", testBindUIDConflict},
		{"BindCardRebind", testRebind},
		{"ConcurrentBindSameUID", testConcurrentBind},
		{"RecordAttendance", testRecordAttendance},
		{"ListAttendanceFilters", testListAttendance},
		{"DeleteScannerDropsQueue", testDeleteScannerDropsQueue},
		{"PurgeAttendance", testPurge},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func seedUser(t *testing.T, s store.Store, name string, code int64) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{Name: name, UserCode: code})
	require.NoError(t, err)
	return u
}

func seedScanner(t *testing.T, s store.Store, name string) model.Scanner {
	t.Helper()
	sc, err := s.CreateScanner(context.Background(), model.Scanner{Name: name})
	require.NoError(t, err)
	return sc
}

func seedBound(t *testing.T, s store.Store, name string, code int64, scanner, uid string) model.User {
	t.Helper()
	ctx := context.Background()
	seedUser(t, s, name, code)
	_, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: code, ScannerName: scanner})
	require.NoError(t, err)
	res, err := s.BindCard(ctx, store.BindCardRequest{ScannerName: scanner, UID: uid, UserCode: code})
	require.NoError(t, err)
	return res.User
}

func testCreateUser(t *testing.T, s store.Store) {
	ctx := context.Background()

	u := seedUser(t, s, "ann", 1001)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ann", u.Name)
	assert.Equal(t, int64(1001), u.UserCode)
	assert.Nil(t, u.UID)
	assert.NotZero(t, u.CreatedAt)

	_, err := s.CreateUser(ctx, model.User{Name: "other", UserCode: 1001})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	got, err := s.GetUserByCode(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUserByCode(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetUserByUID(ctx, "NOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRenameAndDeleteUser(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedScanner(t, s, "door1")
	seedBound(t, s, "ann", 1001, "door1", "CARD-A")

	renamed, err := s.RenameUser(ctx, 1001, "annie")
	require.NoError(t, err)
	assert.Equal(t, "annie", renamed.Name)

	_, err = s.RenameUser(ctx, 4242, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-A"})
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, 1001))
	assert.ErrorIs(t, s.DeleteUser(ctx, 1001), store.ErrNotFound)

	_, err = s.GetUserByUID(ctx, "CARD-A")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.NextPending(ctx, "door1")
	assert.ErrorIs(t, err, store.ErrQueueEmpty)

	events, err := s.ListAttendance(ctx, store.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)

	// code is free again
	seedUser(t, s, "ann", 1001)
}

func testScanners(t *testing.T, s store.Store) {
	ctx := context.Background()

	sc := seedScanner(t, s, "door1")
	assert.NotEmpty(t, sc.ID)

	_, err := s.CreateScanner(ctx, model.Scanner{Name: "door1"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	seedScanner(t, s, "lab")

	got, err := s.GetScannerByName(ctx, "door1")
	require.NoError(t, err)
	assert.Equal(t, sc.ID, got.ID)

	list, err := s.ListScanners(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "door1", list[0].Name)
	assert.Equal(t, "lab", list[1].Name)

	require.NoError(t, s.DeleteScanner(ctx, "lab"))
	_, err = s.GetScannerByName(ctx, "lab")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteScanner(ctx, "lab"), store.ErrNotFound)
}

func testEnqueueDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedUser(t, s, "ann", 1001)
	seedScanner(t, s, "door1")

	e, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)

	_, err = s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	queue, err := s.ListQueue(ctx, store.QueueFilter{ScannerName: "door1"})
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func testEnqueueNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedUser(t, s, "ann", 1001)
	seedScanner(t, s, "door1")

	_, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: 2002, ScannerName: "door1"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door9"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.NextPending(ctx, "door9")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testNextPendingFIFO(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedScanner(t, s, "door1")
	seedScanner(t, s, "door2")
	seedUser(t, s, "ann", 1001)
	seedUser(t, s, "bob", 1002)
	seedUser(t, s, "cid", 1003)

	_, err := s.NextPending(ctx, "door1")
	assert.ErrorIs(t, err, store.ErrQueueEmpty)

	for _, code := range []int64{1002, 1001, 1003} {
		_, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: code, ScannerName: "door1"})
		require.NoError(t, err)
	}
	_, err = s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door2"})
	require.NoError(t, err)

	p, err := s.NextPending(ctx, "door1")
	require.NoError(t, err)
	assert.Equal(t, int64(1002), p.UserCode)
	assert.Equal(t, "bob", p.UserName)
	assert.Equal(t, "door1", p.ScannerName)

	require.NoError(t, s.ResolveQueueEntry(ctx, p.EntryID))

	p, err = s.NextPending(ctx, "door1")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), p.UserCode)

	queue, err := s.ListQueue(ctx, store.QueueFilter{ScannerName: "door1"})
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, int64(1001), queue[0].UserCode)
	assert.Equal(t, int64(1003), queue[1].UserCode)

	all, err := s.ListQueue(ctx, store.QueueFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	other, err := s.NextPending(ctx, "door2")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), other.UserCode)
}

func testResolveIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedUser(t, s, "ann", 1001)
	seedScanner(t, s, "door1")

	e, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	require.NoError(t, err)

	require.NoError(t, s.ResolveQueueEntry(ctx, e.ID))
	require.NoError(t, s.ResolveQueueEntry(ctx, e.ID))
	require.NoError(t, s.ResolveQueueEntry(ctx, "00000000-0000-0000-0000-000000000000"))

	_, err = s.NextPending(ctx, "door1")
	assert.ErrorIs(t, err, store.ErrQueueEmpty)

	// the pair can be queued again once resolved
	_, err = s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	assert.NoError(t, err)
}

func testBindCard(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedUser(t, s, "ann", 1001)
	seedScanner(t, s, "door1")

	e, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	require.NoError(t, err)

	res, err := s.BindCard(ctx, store.BindCardRequest{ScannerName: "door1", UID: "CARD-A", UserCode: 1001})
	require.NoError(t, err)
	assert.Equal(t, e.ID, res.EntryID)
	assert.Equal(t, "door1", res.ScannerName)
	assert.Empty(t, res.PreviousUID)
	require.NotNil(t, res.User.UID)
	assert.Equal(t, "CARD-A", *res.User.UID)

	_, err = s.NextPending(ctx, "door1")
	assert.ErrorIs(t, err, store.ErrQueueEmpty)

	u, err := s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), u.UserCode)
	assert.True(t, u.Bound())

	byCode, err := s.GetUserByCode(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, byCode.UID)
	assert.Equal(t, "CARD-A", *byCode.UID)
}

func testBindNotQueued(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedUser(t, s, "ann", 1001)
	seedScanner(t, s, "door1")

	_, err := s.BindCard(ctx, store.BindCardRequest{ScannerName: "door1", UID: "CARD-A", UserCode: 1001})
	assert.ErrorIs(t, err, store.ErrNotQueued)

	_, err = s.BindCard(ctx, store.BindCardRequest{ScannerName: "door1", UID: "CARD-A", UserCode: 7777})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.BindCard(ctx, store.BindCardRequest{ScannerName: "door9", UID: "CARD-A", UserCode: 1001})
	assert.ErrorIs(t, err, store.ErrNotFound)

	u, err := s.GetUserByCode(ctx, 1001)
	require.NoError(t, err)
	assert.False(t, u.Bound())
}

func testBindUIDConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedScanner(t, s, "door1")
	seedBound(t, s, "ann", 1001, "door1", "CARD-A")
	seedUser(t, s, "bob", 1002)

	_, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1002, ScannerName: "door1"})
	require.NoError(t, err)

	_, err = s.BindCard(ctx, store.BindCardRequest{ScannerName: "door1", UID: "CARD-A", UserCode: 1002})
	assert.ErrorIs(t, err, store.ErrUIDConflict)

	// nothing changed: bob still queued and unbound, ann still owns the card
	p, err := s.NextPending(ctx, "door1")
	require.NoError(t, err)
	assert.Equal(t, int64(1002), p.UserCode)

	bob, err := s.GetUserByCode(ctx, 1002)
	require.NoError(t, err)
	assert.False(t, bob.Bound())

	owner, err := s.GetUserByUID(ctx, "CARD-A")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), owner.UserCode)
}

func testRebind(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedScanner(t, s, "door1")
	seedBound(t, s, "ann", 1001, "door1", "CARD-A")

	_, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	require.NoError(t, err)

	res, err := s.BindCard(ctx, store.BindCardRequest{ScannerName: "door1", UID: "CARD-B", UserCode: 1001})
	require.NoError(t, err)
	assert.Equal(t, "CARD-A", res.PreviousUID)

	_, err = s.GetUserByUID(ctx, "CARD-A")
	assert.ErrorIs(t, err, store.ErrNotFound)

	u, err := s.GetUserByUID(ctx, "CARD-B")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), u.UserCode)
}

func testConcurrentBind(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedScanner(t, s, "door1")
	seedScanner(t, s, "door2")
	seedUser(t, s, "ann", 1001)
	seedUser(t, s, "bob", 1002)

	_, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1002, ScannerName: "door2"})
	require.NoError(t, err)

	reqs := []store.BindCardRequest{
		{ScannerName: "door1", UID: "CARD-Z", UserCode: 1001},
		{ScannerName: "door2", UID: "CARD-Z", UserCode: 1002},
	}

	errs := make([]error, len(reqs))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req store.BindCardRequest) {
			defer wg.Done()
			<-start
			_, errs[i] = s.BindCard(ctx, req)
		}(i, req)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, store.ErrUIDConflict)
	}
	assert.Equal(t, 1, succeeded)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	holders := 0
	for _, u := range users {
		if u.UID != nil && *u.UID == "CARD-Z" {
			holders++
		}
	}
	assert.Equal(t, 1, holders)
}

func testRecordAttendance(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedScanner(t, s, "door1")
	ann := seedBound(t, s, "ann", 1001, "door1", "CARD-A")

	t1 := time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)
	ev, err := s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-A", ScannerName: "door1", At: t1})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, ann.ID, ev.UserID)
	assert.Equal(t, int64(1001), ev.UserCode)
	assert.Equal(t, "door1", ev.ScannerName)
	assert.True(t, t1.Equal(ev.Timestamp))

	// repeated taps are all kept
	_, err = s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-A", At: t1.Add(time.Second)})
	require.NoError(t, err)

	_, err = s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-X", At: t1})
	assert.ErrorIs(t, err, store.ErrUnknownCard)

	events, err := s.ListAttendance(ctx, store.AttendanceFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	now, err := s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-A"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now.Timestamp, time.Minute)
}

func testListAttendance(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedScanner(t, s, "door1")
	seedBound(t, s, "ann", 1001, "door1", "CARD-A")
	seedBound(t, s, "bob", 1002, "door1", "CARD-B")

	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-A", At: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	_, err := s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-B", At: base})
	require.NoError(t, err)

	ann, err := s.ListAttendance(ctx, store.AttendanceFilter{UserCode: 1001})
	require.NoError(t, err)
	require.Len(t, ann, 3)
	assert.True(t, ann[0].Timestamp.After(ann[2].Timestamp), "newest first")
	assert.Equal(t, "ann", ann[0].UserName)

	window, err := s.ListAttendance(ctx, store.AttendanceFilter{
		UserCode: 1001,
		Since:    base.Add(30 * time.Minute),
		Until:    base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.True(t, base.Add(time.Hour).Equal(window[0].Timestamp))

	limited, err := s.ListAttendance(ctx, store.AttendanceFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.ListAttendance(ctx, store.AttendanceFilter{UserCode: 5555})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDeleteScannerDropsQueue(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedScanner(t, s, "door1")
	seedUser(t, s, "ann", 1001)

	_, err := s.Enqueue(ctx, store.EnqueueRequest{UserCode: 1001, ScannerName: "door1"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteScanner(ctx, "door1"))

	queue, err := s.ListQueue(ctx, store.QueueFilter{})
	require.NoError(t, err)
	assert.Empty(t, queue)

	_, err = s.GetUserByCode(ctx, 1001)
	assert.NoError(t, err)
}

func testPurge(t *testing.T, s store.Store) {
	purger, ok := s.(store.Purger)
	if !ok {
		t.Skip("store does not support purge")
	}

	ctx := context.Background()
	seedScanner(t, s, "door1")
	seedBound(t, s, "ann", 1001, "door1", "CARD-A")

	old := time.Now().UTC().Add(-48 * time.Hour)
	_, err := s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-A", At: old})
	require.NoError(t, err)
	_, err = s.RecordAttendance(ctx, store.RecordAttendanceRequest{UID: "CARD-A"})
	require.NoError(t, err)

	n, err := purger.PurgeAttendanceBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, err := s.ListAttendance(ctx, store.AttendanceFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
