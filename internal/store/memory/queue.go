package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

func (s *Store) Enqueue(_ context.Context, req store.EnqueueRequest) (model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.userByCodeLocked(req.UserCode)
	if !ok {
		return model.QueueEntry{}, store.ErrNotFound
	}
	sc, ok := s.scannerByNameLocked(strings.TrimSpace(req.ScannerName))
	if !ok {
		return model.QueueEntry{}, store.ErrNotFound
	}

	key := pairKey{userID: u.ID, scannerID: sc.ID}
	if _, exists := s.entryPair[key]; exists {
		return model.QueueEntry{}, store.ErrDuplicate
	}

	s.seq++
	e := queuedEntry{
		QueueEntry: model.QueueEntry{
			ID:        newID(),
			UserID:    u.ID,
			ScannerID: sc.ID,
			CreatedAt: time.Now().UTC(),
		},
		seq: s.seq,
	}
	s.entries[e.ID] = e
	s.entryPair[key] = e.ID
	return e.QueueEntry, nil
}

func (s *Store) NextPending(_ context.Context, scannerName string) (*model.PendingBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scannerByNameLocked(scannerName)
	if !ok {
		return nil, store.ErrNotFound
	}

	pending := s.pendingLocked(sc.ID)
	if len(pending) == 0 {
		return nil, store.ErrQueueEmpty
	}
	p := s.toPendingLocked(pending[0])
	return &p, nil
}

func (s *Store) ListQueue(_ context.Context, f store.QueueFilter) ([]model.PendingBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scannerID := ""
	if f.ScannerName != "" {
		sc, ok := s.scannerByNameLocked(f.ScannerName)
		if !ok {
			return []model.PendingBinding{}, nil
		}
		scannerID = sc.ID
	}

	pending := s.pendingLocked(scannerID)
	if f.Limit > 0 && len(pending) > f.Limit {
		pending = pending[:f.Limit]
	}

	out := make([]model.PendingBinding, 0, len(pending))
	for _, e := range pending {
		out = append(out, s.toPendingLocked(e))
	}
	return out, nil
}

func (s *Store) ResolveQueueEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// already resolved: no-op
	s.removeEntryLocked(id)
	return nil
}

// pendingLocked returns entries for scannerID (all scanners when empty) in
// insertion order.
func (s *Store) pendingLocked(scannerID string) []queuedEntry {
	var out []queuedEntry
	for _, e := range s.entries {
		if scannerID != "" && e.ScannerID != scannerID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}

func (s *Store) toPendingLocked(e queuedEntry) model.PendingBinding {
	u := s.users[e.UserID]
	sc := s.scanners[e.ScannerID]
	return model.PendingBinding{
		EntryID:     e.ID,
		UserName:    u.Name,
		UserCode:    u.UserCode,
		ScannerName: sc.Name,
		CreatedAt:   e.CreatedAt,
	}
}

func (s *Store) removeEntryLocked(id string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entryPair, pairKey{userID: e.UserID, scannerID: e.ScannerID})
	delete(s.entries, id)
}
