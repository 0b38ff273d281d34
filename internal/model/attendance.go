package model

import "time"

type AttendanceEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserCode    int64     `json:"user_code"`
	UserName    string    `json:"user_name"`
	ScannerName string    `json:"scanner_name,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
