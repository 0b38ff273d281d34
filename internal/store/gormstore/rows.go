package gormstore

import (
	"time"

	"rfid-attendance/tracker/internal/model"
)

type userRow struct {
	ID        string  `gorm:"type:varchar(36);primaryKey"`
	Name      string  `gorm:"type:varchar(30);not null"`
	UserCode  int64   `gorm:"not null;uniqueIndex:idx_users_user_code"`
	UID       *string `gorm:"column:uid;type:varchar(64);uniqueIndex:idx_users_uid"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() model.User {
	return model.User{
		ID:        r.ID,
		Name:      r.Name,
		UserCode:  r.UserCode,
		UID:       r.UID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type scannerRow struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Name      string `gorm:"type:varchar(10);not null;uniqueIndex:idx_scanners_name"`
	CreatedAt time.Time
}

func (scannerRow) TableName() string { return "scanners" }

func (r scannerRow) toModel() model.Scanner {
	return model.Scanner{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt.UTC()}
}

// queueEntryRow orders FIFO by its auto-increment Seq; ID is the public key.
type queueEntryRow struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	ID        string `gorm:"type:varchar(36);not null;uniqueIndex:idx_queue_entries_id"`
	UserID    string `gorm:"type:varchar(36);not null;uniqueIndex:idx_queue_entries_pair,priority:1"`
	ScannerID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_queue_entries_pair,priority:2;index:idx_queue_entries_scanner"`
	CreatedAt time.Time
}

func (queueEntryRow) TableName() string { return "queue_entries" }

func (r queueEntryRow) toModel() model.QueueEntry {
	return model.QueueEntry{ID: r.ID, UserID: r.UserID, ScannerID: r.ScannerID, CreatedAt: r.CreatedAt.UTC()}
}

type attendanceRow struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	UserID      string    `gorm:"type:varchar(36);not null;index:idx_attendance_user"`
	ScannerName string    `gorm:"type:varchar(10)"`
	RecordedAt  time.Time `gorm:"not null;index:idx_attendance_recorded"`
}

func (attendanceRow) TableName() string { return "attendance_events" }

// pendingRow and attendanceView receive join queries.
type pendingRow struct {
	EntryID     string
	UserName    string
	UserCode    int64
	ScannerName string
	CreatedAt   time.Time
}

func (r pendingRow) toModel() model.PendingBinding {
	return model.PendingBinding{
		EntryID:     r.EntryID,
		UserName:    r.UserName,
		UserCode:    r.UserCode,
		ScannerName: r.ScannerName,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type attendanceView struct {
	ID          string
	UserID      string
	UserCode    int64
	UserName    string
	ScannerName string
	RecordedAt  time.Time
}

func (r attendanceView) toModel() model.AttendanceEvent {
	return model.AttendanceEvent{
		ID:          r.ID,
		UserID:      r.UserID,
		UserCode:    r.UserCode,
		UserName:    r.UserName,
		ScannerName: r.ScannerName,
		Timestamp:   r.RecordedAt.UTC(),
	}
}
