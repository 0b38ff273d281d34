package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

func scanAttendance(row rowScanner) (model.AttendanceEvent, error) {
	var ev model.AttendanceEvent
	err := row.Scan(&ev.ID, &ev.UserID, &ev.UserCode, &ev.UserName, &ev.ScannerName, &ev.Timestamp)
	return ev, err
}

// RecordAttendance looks the card up and inserts the event in one statement.
func (s *Store) RecordAttendance(ctx context.Context, req store.RecordAttendanceRequest) (model.AttendanceEvent, error) {
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	ev, err := scanAttendance(s.pool.QueryRow(ctx, `
		with owner as (
		  select id, user_code, name
		  from public.users
		  where uid = $1
		), ins as (
		  insert into public.attendance_events (user_id, scanner_name, recorded_at)
		  select id, nullif($2, ''), $3
		  from owner
		  returning id, user_id, scanner_name, recorded_at
		)
		select ins.id::text, ins.user_id::text, owner.user_code, owner.name, coalesce(ins.scanner_name, ''), ins.recorded_at
		from ins
		join owner on owner.id = ins.user_id
	`, strings.TrimSpace(req.UID), strings.TrimSpace(req.ScannerName), at.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AttendanceEvent{}, store.ErrUnknownCard
		}
		return model.AttendanceEvent{}, mapPgErr(err)
	}
	ev.Timestamp = ev.Timestamp.UTC()
	return ev, nil
}

func (s *Store) ListAttendance(ctx context.Context, f store.AttendanceFilter) ([]model.AttendanceEvent, error) {
	query := `
		select a.id::text, a.user_id::text, u.user_code, u.name, coalesce(a.scanner_name, ''), a.recorded_at
		from public.attendance_events a
		join public.users u on u.id = a.user_id
	`
	var where []string
	args := []any{}

	if f.UserCode != 0 {
		args = append(args, f.UserCode)
		where = append(where, fmt.Sprintf("u.user_code = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("a.recorded_at >= $%d", len(args)))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		where = append(where, fmt.Sprintf("a.recorded_at < $%d", len(args)))
	}
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += " order by a.recorded_at desc"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.AttendanceEvent{}
	for rows.Next() {
		ev, err := scanAttendance(rows)
		if err != nil {
			return nil, mapPgErr(err)
		}
		ev.Timestamp = ev.Timestamp.UTC()
		out = append(out, ev)
	}
	return out, mapPgErr(rows.Err())
}

func (s *Store) PurgeAttendanceBefore(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		with d as (
		  delete from public.attendance_events
		  where recorded_at < $1
		  returning 1
		)
		select count(*) from d
	`, before).Scan(&n)
	if err != nil {
		return 0, mapPgErr(err)
	}
	return n, nil
}
