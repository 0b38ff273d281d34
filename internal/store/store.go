package store

import (
	"context"
	"errors"
	"time"

	"rfid-attendance/tracker/internal/model"
)

var (
	ErrNotFound    = errors.New("not_found")
	ErrDuplicate   = errors.New("duplicate")
	ErrUIDConflict = errors.New("uid_conflict")
	ErrNotQueued   = errors.New("not_queued")
	ErrUnknownCard = errors.New("unknown_card")
	ErrQueueEmpty  = errors.New("queue_empty")
)

type EnqueueRequest struct {
	UserCode    int64  `json:"user_code"`
	ScannerName string `json:"scanner_name"`
}

type QueueFilter struct {
	ScannerName string
	Limit       int
}

// BindCardRequest binds UID to the user queued as UserCode on ScannerName.
// UID must already be normalized.
type BindCardRequest struct {
	ScannerName string `json:"scanner_name"`
	UID         string `json:"uid"`
	UserCode    int64  `json:"user_code"`
}

type RecordAttendanceRequest struct {
	UID         string    `json:"uid"`
	ScannerName string    `json:"scanner_name,omitempty"`
	At          time.Time `json:"at"`
}

type AttendanceFilter struct {
	UserCode int64
	Since    time.Time
	Until    time.Time
	Limit    int
}

type Store interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByCode(ctx context.Context, code int64) (*model.User, error)
	GetUserByUID(ctx context.Context, uid string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	RenameUser(ctx context.Context, code int64, name string) (model.User, error)
	DeleteUser(ctx context.Context, code int64) error

	CreateScanner(ctx context.Context, sc model.Scanner) (model.Scanner, error)
	GetScannerByName(ctx context.Context, name string) (*model.Scanner, error)
	ListScanners(ctx context.Context) ([]model.Scanner, error)
	DeleteScanner(ctx context.Context, name string) error

	Enqueue(ctx context.Context, req EnqueueRequest) (model.QueueEntry, error)
	NextPending(ctx context.Context, scannerName string) (*model.PendingBinding, error)
	ListQueue(ctx context.Context, f QueueFilter) ([]model.PendingBinding, error)
	ResolveQueueEntry(ctx context.Context, id string) error

	BindCard(ctx context.Context, req BindCardRequest) (model.BindResult, error)

	RecordAttendance(ctx context.Context, req RecordAttendanceRequest) (model.AttendanceEvent, error)
	ListAttendance(ctx context.Context, f AttendanceFilter) ([]model.AttendanceEvent, error)

	Ping(ctx context.Context) error
}

// Purger is implemented by stores that support attendance retention.
type Purger interface {
	PurgeAttendanceBefore(ctx context.Context, before time.Time) (int, error)
}
