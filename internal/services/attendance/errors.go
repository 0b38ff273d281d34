package attendance

import (
	"errors"
	"fmt"

	"rfid-attendance/tracker/internal/store"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("already exists")
	ErrUIDConflict = errors.New("card is bound to another user")
	ErrNotQueued   = errors.New("user is not queued on this scanner")
	ErrUnknownCard = errors.New("unknown card")
	ErrInvalidUID  = errors.New("uid is empty")
)

// StorageError wraps a store failure that is not part of the domain
// taxonomy. The store has already rolled back by the time it is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func mapStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	case errors.Is(err, store.ErrUIDConflict):
		return fmt.Errorf("%s: %w", op, ErrUIDConflict)
	case errors.Is(err, store.ErrNotQueued):
		return fmt.Errorf("%s: %w", op, ErrNotQueued)
	case errors.Is(err, store.ErrUnknownCard):
		return fmt.Errorf("%s: %w", op, ErrUnknownCard)
	default:
		return &StorageError{Op: op, Err: err}
	}
}
