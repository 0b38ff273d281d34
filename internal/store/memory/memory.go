package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"rfid-attendance/tracker/internal/model"
)

// Store keeps every entity in maps guarded by one mutex. Secondary indexes
// make lookups by user code, card UID and scanner name constant time.
type Store struct {
	mu sync.Mutex

	users      map[string]model.User
	userByCode map[int64]string
	userByUID  map[string]string

	scanners      map[string]model.Scanner
	scannerByName map[string]string

	entries   map[string]queuedEntry
	entryPair map[pairKey]string
	seq       uint64

	attendance []model.AttendanceEvent
}

type queuedEntry struct {
	model.QueueEntry
	seq uint64
}

type pairKey struct {
	userID    string
	scannerID string
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]model.User),
		userByCode:    make(map[int64]string),
		userByUID:     make(map[string]string),
		scanners:      make(map[string]model.Scanner),
		scannerByName: make(map[string]string),
		entries:       make(map[string]queuedEntry),
		entryPair:     make(map[pairKey]string),
	}
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func newID() string {
	return uuid.NewString()
}

type errWithCode string

func (e errWithCode) Error() string { return string(e) }
