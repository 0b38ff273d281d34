package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

func (s *Store) CreateScanner(_ context.Context, sc model.Scanner) (model.Scanner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(sc.Name)
	if name == "" {
		return model.Scanner{}, errWithCode("name_required")
	}
	if _, exists := s.scannerByName[name]; exists {
		return model.Scanner{}, store.ErrDuplicate
	}

	sc.ID = newID()
	sc.Name = name
	sc.CreatedAt = time.Now().UTC()
	s.scanners[sc.ID] = sc
	s.scannerByName[name] = sc.ID
	return sc, nil
}

func (s *Store) GetScannerByName(_ context.Context, name string) (*model.Scanner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scannerByNameLocked(name)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sc, nil
}

func (s *Store) ListScanners(_ context.Context) ([]model.Scanner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Scanner, 0, len(s.scanners))
	for _, sc := range s.scanners {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) DeleteScanner(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scannerByNameLocked(name)
	if !ok {
		return store.ErrNotFound
	}

	for id, e := range s.entries {
		if e.ScannerID == sc.ID {
			s.removeEntryLocked(id)
		}
	}
	delete(s.scannerByName, sc.Name)
	delete(s.scanners, sc.ID)
	return nil
}

func (s *Store) scannerByNameLocked(name string) (model.Scanner, bool) {
	id, ok := s.scannerByName[name]
	if !ok {
		return model.Scanner{}, false
	}
	sc, ok := s.scanners[id]
	return sc, ok
}
