package model

import "time"

type QueueEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ScannerID string    `json:"scanner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingBinding is a queue entry joined with the user and scanner it refers to.
type PendingBinding struct {
	EntryID     string    `json:"entry_id"`
	UserName    string    `json:"user_name"`
	UserCode    int64     `json:"user_code"`
	ScannerName string    `json:"scanner_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type BindResult struct {
	User        User   `json:"user"`
	ScannerName string `json:"scanner_name"`
	EntryID     string `json:"entry_id"`
	PreviousUID string `json:"previous_uid,omitempty"`
}
