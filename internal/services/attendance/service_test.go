package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfid-attendance/tracker/internal/lib/logger"
	"rfid-attendance/tracker/internal/metrics"
	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
	"rfid-attendance/tracker/internal/store/memory"
)

type mockPublisher struct {
	mu          sync.Mutex
	publishFunc func(ctx context.Context, key, value []byte) error
	events      []FeedEvent
}

func (m *mockPublisher) Publish(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ev FeedEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return err
	}
	m.events = append(m.events, ev)
	if m.publishFunc != nil {
		return m.publishFunc(ctx, key, value)
	}
	return nil
}

// brokenStore fails every UID lookup with an infrastructure error.
type brokenStore struct {
	store.Store
}

func (brokenStore) GetUserByUID(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection reset by peer")
}

var fixedNow = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(memory.NewStore(), logger.Discard(), opts...)
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{}
	svc := newTestService(t, WithPublisher(pub), WithMetrics(metrics.New()))

	ann, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)

	pending, err := svc.GetPending(ctx, "door1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "ann", pending.UserName)
	assert.Equal(t, int64(1001), pending.UserCode)

	res, err := svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A", UserCode: 1001})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBound, res.Outcome)
	require.NotNil(t, res.Binding)
	assert.Equal(t, "CARD-A", *res.Binding.User.UID)

	got, err := svc.LookupUser(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, got.UID)
	assert.Equal(t, "CARD-A", *got.UID)

	pending, err = svc.GetPending(ctx, "door1")
	require.NoError(t, err)
	assert.Nil(t, pending)

	t1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ev, err := svc.Record(ctx, "CARD-A", t1, "")
	require.NoError(t, err)
	assert.Equal(t, ann.ID, ev.UserID)
	assert.True(t, t1.Equal(ev.Timestamp))

	_, err = svc.Record(ctx, "CARD-X", t1.Add(time.Minute), "")
	assert.ErrorIs(t, err, ErrUnknownCard)

	events, err := svc.ListAttendance(ctx, store.AttendanceFilter{UserCode: 1001})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	require.Len(t, pub.events, 2)
	assert.Equal(t, FeedBinding, pub.events[0].Type)
	assert.Equal(t, FeedAttendance, pub.events[1].Type)
	assert.Equal(t, int64(1001), pub.events[1].UserCode)
}

func TestReportScanRecordsAttendanceForBoundCard(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)
	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "card-a", UserCode: 1001})
	require.NoError(t, err)

	res, err := svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "  CARD-A "})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAttendance, res.Outcome)
	require.NotNil(t, res.Attendance)
	assert.Equal(t, "door1", res.Attendance.ScannerName)
	assert.True(t, fixedNow.Equal(res.Attendance.Timestamp))
}

func TestReportScanErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", 1002)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)
	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A", UserCode: 1001})
	require.NoError(t, err)

	tests := []struct {
		name    string
		scan    Scan
		wantErr error
	}{
		{"empty uid", Scan{ScannerName: "door1", UID: "   ", UserCode: 1001}, ErrInvalidUID},
		{"unbound card without pending", Scan{ScannerName: "door1", UID: "CARD-Z"}, ErrUnknownCard},
		{"not queued", Scan{ScannerName: "door1", UID: "CARD-Z", UserCode: 1002}, ErrNotQueued},
		{"unknown user", Scan{ScannerName: "door1", UID: "CARD-Z", UserCode: 4242}, ErrNotFound},
		{"unknown scanner", Scan{ScannerName: "gate9", UID: "CARD-Z", UserCode: 1001}, ErrNotFound},
		{"unknown scanner, bound card", Scan{ScannerName: "gate9", UID: "CARD-A"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReportScan(ctx, tt.scan)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	events, err := svc.ListAttendance(ctx, store.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordUnknownScanner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)
	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A", UserCode: 1001})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteScanner(ctx, "door1"))

	_, err = svc.Record(ctx, "CARD-A", time.Time{}, "door1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A"})
	assert.ErrorIs(t, err, ErrNotFound)

	events, err := svc.ListAttendance(ctx, store.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReportScanUIDConflict(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for code, name := range map[int64]string{1001: "ann", 1002: "bob"} {
		_, err := svc.Register(ctx, name, code)
		require.NoError(t, err)
	}
	_, err := svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1002, "door1")
	require.NoError(t, err)

	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A", UserCode: 1001})
	require.NoError(t, err)

	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A", UserCode: 1002})
	assert.ErrorIs(t, err, ErrUIDConflict)

	bob, err := svc.LookupUser(ctx, 1002)
	require.NoError(t, err)
	assert.Nil(t, bob.UID)

	ann, err := svc.LookupUser(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, ann.UID)
	assert.Equal(t, "CARD-A", *ann.UID)

	pending, err := svc.NextPending(ctx, "door1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, int64(1002), pending.UserCode)

	events, err := svc.ListAttendance(ctx, store.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRepeatedReadAfterBind(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)

	scan := Scan{ScannerName: "door1", UID: "CARD-A", UserCode: 1001}
	res, err := svc.ReportScan(ctx, scan)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBound, res.Outcome)

	res, err = svc.ReportScan(ctx, scan)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAttendance, res.Outcome)
	require.NotNil(t, res.Attendance)
	assert.Equal(t, int64(1001), res.Attendance.UserCode)
}

func TestConcurrentBindOneWinner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	scanners := []string{"door1", "door2"}
	for _, name := range scanners {
		_, err := svc.AddScanner(ctx, name)
		require.NoError(t, err)
	}
	codes := []int64{2001, 2002, 2003, 2004}
	for i, code := range codes {
		_, err := svc.Register(ctx, gofakeit.FirstName(), code)
		require.NoError(t, err)
		_, err = svc.Enqueue(ctx, code, scanners[i%len(scanners)])
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]ScanResult, len(codes))
	errs := make([]error, len(codes))
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code int64) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.ReportScan(ctx, Scan{
				ScannerName: scanners[i%len(scanners)],
				UID:         "SHARED",
				UserCode:    code,
			})
		}(i, code)
	}
	close(start)
	wg.Wait()

	bound := 0
	for i, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrUIDConflict)
			continue
		}
		assert.Equal(t, OutcomeBound, results[i].Outcome)
		bound++
	}
	assert.Equal(t, 1, bound)

	events, err := svc.ListAttendance(ctx, store.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	name := gofakeit.FirstName()
	_, err := svc.Register(ctx, name, 1001)
	require.NoError(t, err)
	_, err = svc.Register(ctx, gofakeit.FirstName(), 1001)
	assert.ErrorIs(t, err, ErrDuplicate)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, name, users[0].Name)
}

func TestQueueOperations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)

	_, err = svc.NextPending(ctx, "gate9")
	assert.ErrorIs(t, err, ErrNotFound)

	e, err := svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = svc.Enqueue(ctx, 1001, "gate9")
	assert.ErrorIs(t, err, ErrNotFound)

	queue, err := svc.ListQueue(ctx, "door1", 0)
	require.NoError(t, err)
	assert.Len(t, queue, 1)

	require.NoError(t, svc.Resolve(ctx, e.ID))
	require.NoError(t, svc.Resolve(ctx, e.ID))

	pending, err := svc.NextPending(ctx, "door1")
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestRecordDefaultsToNow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)
	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A", UserCode: 1001})
	require.NoError(t, err)

	ev, err := svc.Record(ctx, "card-a", time.Time{}, "door1")
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(ev.Timestamp))
	assert.Equal(t, "door1", ev.ScannerName)

	_, err = svc.Record(ctx, "", time.Time{}, "")
	assert.ErrorIs(t, err, ErrInvalidUID)
}

func TestPublishFailureDoesNotFailRecord(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{
		publishFunc: func(context.Context, []byte, []byte) error {
			return errors.New("broker unavailable")
		},
	}
	svc := newTestService(t, WithPublisher(pub))

	_, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)
	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A", UserCode: 1001})
	require.NoError(t, err)

	_, err = svc.Record(ctx, "CARD-A", time.Time{}, "")
	require.NoError(t, err)
	assert.Len(t, pub.events, 2)
}

func TestStorageErrorIsWrapped(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	_, err := mem.CreateScanner(ctx, model.Scanner{Name: "door1"})
	require.NoError(t, err)
	svc := New(brokenStore{Store: mem}, logger.Discard())

	_, err = svc.ReportScan(ctx, Scan{ScannerName: "door1", UID: "CARD-A"})
	require.Error(t, err)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "attendance.ReportScan", se.Op)
	assert.NotErrorIs(t, err, ErrUnknownCard)
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Register(ctx, "ann", 1001)
	require.NoError(t, err)
	_, err = svc.AddScanner(ctx, "door1")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, 1001, "door1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteScanner(ctx, "door1"))
	queue, err := svc.ListQueue(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, queue)

	require.NoError(t, svc.DeleteUser(ctx, 1001))
	_, err = svc.LookupUser(ctx, 1001)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteUser(ctx, 1001), ErrNotFound)
}
