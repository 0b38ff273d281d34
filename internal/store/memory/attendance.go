package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

func (s *Store) RecordAttendance(_ context.Context, req store.RecordAttendanceRequest) (model.AttendanceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.userByUID[strings.TrimSpace(req.UID)]
	if !ok {
		return model.AttendanceEvent{}, store.ErrUnknownCard
	}
	u := s.users[id]

	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	ev := model.AttendanceEvent{
		ID:          newID(),
		UserID:      u.ID,
		UserCode:    u.UserCode,
		UserName:    u.Name,
		ScannerName: strings.TrimSpace(req.ScannerName),
		Timestamp:   at.UTC(),
	}
	s.attendance = append(s.attendance, ev)
	return ev, nil
}

func (s *Store) ListAttendance(_ context.Context, f store.AttendanceFilter) ([]model.AttendanceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := ""
	if f.UserCode != 0 {
		u, ok := s.userByCodeLocked(f.UserCode)
		if !ok {
			return []model.AttendanceEvent{}, nil
		}
		userID = u.ID
	}

	out := make([]model.AttendanceEvent, 0, len(s.attendance))
	for _, ev := range s.attendance {
		if userID != "" && ev.UserID != userID {
			continue
		}
		if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !ev.Timestamp.Before(f.Until) {
			continue
		}
		// names can change after the event was written
		u := s.users[ev.UserID]
		ev.UserName = u.Name
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) PurgeAttendanceBefore(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := s.attendance[:0]
	for _, ev := range s.attendance {
		if ev.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.attendance = kept
	return removed, nil
}
