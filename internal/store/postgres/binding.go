package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

// BindCard locks the user and the queue entry, checks card ownership, then
// sets the UID and drops the entry in the same transaction. Two binds racing
// for one UID both pass the ownership check; the unique index on users.uid
// rejects the later commit, which surfaces as store.ErrUIDConflict.
func (s *Store) BindCard(ctx context.Context, req store.BindCardRequest) (model.BindResult, error) {
	uid := strings.TrimSpace(req.UID)
	if uid == "" {
		return model.BindResult{}, errors.New("uid_required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.BindResult{}, mapPgErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		userID     string
		currentUID *string
	)
	if err := tx.QueryRow(ctx, `
		select id::text, uid
		from public.users
		where user_code = $1
		for update
	`, req.UserCode).Scan(&userID, &currentUID); err != nil {
		return model.BindResult{}, mapPgErr(err)
	}

	var scannerID, scannerName string
	if err := tx.QueryRow(ctx, `
		select id::text, name
		from public.scanners
		where name = $1
	`, req.ScannerName).Scan(&scannerID, &scannerName); err != nil {
		return model.BindResult{}, mapPgErr(err)
	}

	var entryID string
	err = tx.QueryRow(ctx, `
		select id::text
		from public.queue_entries
		where user_id = $1::uuid and scanner_id = $2::uuid
		for update
	`, userID, scannerID).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BindResult{}, store.ErrNotQueued
		}
		return model.BindResult{}, mapPgErr(err)
	}

	var owner string
	err = tx.QueryRow(ctx, `select id::text from public.users where uid = $1`, uid).Scan(&owner)
	switch {
	case err == nil && owner != userID:
		return model.BindResult{}, store.ErrUIDConflict
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return model.BindResult{}, mapPgErr(err)
	}

	u, err := scanUser(tx.QueryRow(ctx, `
		update public.users
		set uid = $2
		where id = $1::uuid
		returning `+userColumns, userID, uid))
	if err != nil {
		return model.BindResult{}, mapPgErr(err)
	}

	if _, err := tx.Exec(ctx, `delete from public.queue_entries where id = $1::uuid`, entryID); err != nil {
		return model.BindResult{}, mapPgErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.BindResult{}, mapPgErr(err)
	}

	previous := ""
	if currentUID != nil && *currentUID != uid {
		previous = *currentUID
	}

	return model.BindResult{
		User:        u,
		ScannerName: scannerName,
		EntryID:     entryID,
		PreviousUID: previous,
	}, nil
}
