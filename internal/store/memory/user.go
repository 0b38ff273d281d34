package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

func (s *Store) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(u.Name)
	if name == "" {
		return model.User{}, errWithCode("name_required")
	}
	if _, exists := s.userByCode[u.UserCode]; exists {
		return model.User{}, store.ErrDuplicate
	}
	now := time.Now().UTC()
	u.ID = newID()
	u.Name = name
	u.UID = nil
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.userByCode[u.UserCode] = u.ID
	return u, nil
}

func (s *Store) GetUserByCode(_ context.Context, code int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.userByCodeLocked(code)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByUID(_ context.Context, uid string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.userByUID[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserCode < out[j].UserCode
	})
	return out, nil
}

func (s *Store) RenameUser(_ context.Context, code int64, name string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return model.User{}, errWithCode("name_required")
	}

	u, ok := s.userByCodeLocked(code)
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	u.Name = name
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) DeleteUser(_ context.Context, code int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.userByCodeLocked(code)
	if !ok {
		return store.ErrNotFound
	}

	for id, e := range s.entries {
		if e.UserID == u.ID {
			s.removeEntryLocked(id)
		}
	}

	kept := s.attendance[:0]
	for _, ev := range s.attendance {
		if ev.UserID != u.ID {
			kept = append(kept, ev)
		}
	}
	s.attendance = kept

	if u.UID != nil {
		delete(s.userByUID, *u.UID)
	}
	delete(s.userByCode, u.UserCode)
	delete(s.users, u.ID)
	return nil
}

func (s *Store) userByCodeLocked(code int64) (model.User, bool) {
	id, ok := s.userByCode[code]
	if !ok {
		return model.User{}, false
	}
	u, ok := s.users[id]
	return u, ok
}
