package postgres

import (
	"context"
	"errors"
	"strings"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

func (s *Store) CreateScanner(ctx context.Context, sc model.Scanner) (model.Scanner, error) {
	name := strings.TrimSpace(sc.Name)
	if name == "" {
		return model.Scanner{}, errors.New("name_required")
	}

	var out model.Scanner
	err := s.pool.QueryRow(ctx, `
		insert into public.scanners (name)
		values ($1)
		returning id::text, name, created_at
	`, name).Scan(&out.ID, &out.Name, &out.CreatedAt)
	if err != nil {
		return model.Scanner{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetScannerByName(ctx context.Context, name string) (*model.Scanner, error) {
	var sc model.Scanner
	err := s.pool.QueryRow(ctx, `
		select id::text, name, created_at
		from public.scanners
		where name = $1
	`, name).Scan(&sc.ID, &sc.Name, &sc.CreatedAt)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &sc, nil
}

func (s *Store) ListScanners(ctx context.Context) ([]model.Scanner, error) {
	rows, err := s.pool.Query(ctx, `
		select id::text, name, created_at
		from public.scanners
		order by name asc
	`)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.Scanner{}
	for rows.Next() {
		var sc model.Scanner
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.CreatedAt); err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, sc)
	}
	return out, mapPgErr(rows.Err())
}

func (s *Store) DeleteScanner(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `delete from public.scanners where name = $1`, name)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
