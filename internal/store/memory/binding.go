package memory

import (
	"context"
	"strings"
	"time"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

// BindCard checks and applies the whole binding under the store mutex, so a
// concurrent bind of the same UID observes the first one's result.
func (s *Store) BindCard(_ context.Context, req store.BindCardRequest) (model.BindResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid := strings.TrimSpace(req.UID)
	if uid == "" {
		return model.BindResult{}, errWithCode("uid_required")
	}

	u, ok := s.userByCodeLocked(req.UserCode)
	if !ok {
		return model.BindResult{}, store.ErrNotFound
	}
	sc, ok := s.scannerByNameLocked(req.ScannerName)
	if !ok {
		return model.BindResult{}, store.ErrNotFound
	}

	entryID, ok := s.entryPair[pairKey{userID: u.ID, scannerID: sc.ID}]
	if !ok {
		return model.BindResult{}, store.ErrNotQueued
	}
	if owner, taken := s.userByUID[uid]; taken && owner != u.ID {
		return model.BindResult{}, store.ErrUIDConflict
	}

	previous := ""
	if u.UID != nil {
		previous = *u.UID
		delete(s.userByUID, previous)
	}
	if previous == uid {
		previous = ""
	}

	u.UID = &uid
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	s.userByUID[uid] = u.ID
	s.removeEntryLocked(entryID)

	return model.BindResult{
		User:        u,
		ScannerName: sc.Name,
		EntryID:     entryID,
		PreviousUID: previous,
	}, nil
}
