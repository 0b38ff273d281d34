package model

import (
	"strings"
	"time"
)

const (
	MaxUserNameLen    = 30
	MaxScannerNameLen = 10
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserCode  int64     `json:"user_code"`
	UID       *string   `json:"uid,omitempty"` // nil until a card is bound
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bound reports whether a card UID is attached to the user.
func (u User) Bound() bool {
	return u.UID != nil && *u.UID != ""
}

// NormalizeUID trims and upper-cases a raw card UID so readers that emit
// lower-case hex and readers that emit upper-case hex resolve to the same card.
func NormalizeUID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
