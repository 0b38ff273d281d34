package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

const pendingSelect = `
	select q.id::text, u.name, u.user_code, s.name, q.created_at
	from public.queue_entries q
	join public.users u on u.id = q.user_id
	join public.scanners s on s.id = q.scanner_id
`

func scanPending(row rowScanner) (model.PendingBinding, error) {
	var p model.PendingBinding
	err := row.Scan(&p.EntryID, &p.UserName, &p.UserCode, &p.ScannerName, &p.CreatedAt)
	return p, err
}

// Enqueue resolves both references and inserts in one statement; no row back
// means the user or the scanner does not exist.
func (s *Store) Enqueue(ctx context.Context, req store.EnqueueRequest) (model.QueueEntry, error) {
	var e model.QueueEntry
	err := s.pool.QueryRow(ctx, `
		insert into public.queue_entries (user_id, scanner_id)
		select u.id, s.id
		from public.users u, public.scanners s
		where u.user_code = $1 and s.name = $2
		returning id::text, user_id::text, scanner_id::text, created_at
	`, req.UserCode, strings.TrimSpace(req.ScannerName)).Scan(&e.ID, &e.UserID, &e.ScannerID, &e.CreatedAt)
	if err != nil {
		return model.QueueEntry{}, mapPgErr(err)
	}
	return e, nil
}

func (s *Store) NextPending(ctx context.Context, scannerName string) (*model.PendingBinding, error) {
	p, err := scanPending(s.pool.QueryRow(ctx, pendingSelect+`
		where s.name = $1
		order by q.seq asc
		limit 1
	`, scannerName))
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapPgErr(err)
	}

	if _, err := s.GetScannerByName(ctx, scannerName); err != nil {
		return nil, err
	}
	return nil, store.ErrQueueEmpty
}

func (s *Store) ListQueue(ctx context.Context, f store.QueueFilter) ([]model.PendingBinding, error) {
	query := pendingSelect
	args := []any{}

	if strings.TrimSpace(f.ScannerName) != "" {
		args = append(args, f.ScannerName)
		query += fmt.Sprintf(" where s.name = $%d", len(args))
	}
	query += " order by q.seq asc"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.PendingBinding{}
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, p)
	}
	return out, mapPgErr(rows.Err())
}

// ResolveQueueEntry deletes the entry; a missing or malformed id is a no-op.
func (s *Store) ResolveQueueEntry(ctx context.Context, id string) error {
	entryID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		delete from public.queue_entries
		where id = $1::uuid
	`, entryID.String())
	if err != nil {
		return mapPgErr(err)
	}
	return nil
}
