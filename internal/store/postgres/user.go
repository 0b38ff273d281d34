package postgres

import (
	"context"
	"errors"
	"strings"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

const userColumns = `id::text, name, user_code, uid, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.UserCode, &u.UID, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		return model.User{}, errors.New("name_required")
	}

	out, err := scanUser(s.pool.QueryRow(ctx, `
		insert into public.users (name, user_code)
		values ($1, $2)
		returning `+userColumns, name, u.UserCode))
	if err != nil {
		return model.User{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetUserByCode(ctx context.Context, code int64) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where user_code = $1
	`, code))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByUID(ctx context.Context, uid string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where uid = $1
	`, uid))
	if err != nil {
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		select `+userColumns+`
		from public.users
		order by user_code asc
	`)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, u)
	}
	return out, mapPgErr(rows.Err())
}

func (s *Store) RenameUser(ctx context.Context, code int64, name string) (model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.User{}, errors.New("name_required")
	}

	u, err := scanUser(s.pool.QueryRow(ctx, `
		update public.users
		set name = $2
		where user_code = $1
		returning `+userColumns, code, name))
	if err != nil {
		return model.User{}, mapPgErr(err)
	}
	return u, nil
}

// DeleteUser relies on "on delete cascade" for queue entries and attendance.
func (s *Store) DeleteUser(ctx context.Context, code int64) error {
	tag, err := s.pool.Exec(ctx, `delete from public.users where user_code = $1`, code)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
