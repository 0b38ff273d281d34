package gormstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		return model.User{}, errors.New("name_required")
	}

	row := userRow{ID: newID(), Name: name, UserCode: u.UserCode}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.User{}, mapGormErr(err)
	}
	return row.toModel(), nil
}

func (s *Store) GetUserByCode(ctx context.Context, code int64) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("user_code = ?", code).Take(&row).Error; err != nil {
		return nil, mapGormErr(err)
	}
	u := row.toModel()
	return &u, nil
}

func (s *Store) GetUserByUID(ctx context.Context, uid string) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("uid = ?", uid).Take(&row).Error; err != nil {
		return nil, mapGormErr(err)
	}
	u := row.toModel()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("user_code asc").Find(&rows).Error; err != nil {
		return nil, mapGormErr(err)
	}

	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) RenameUser(ctx context.Context, code int64, name string) (model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.User{}, errors.New("name_required")
	}

	var row userRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_code = ?", code).Take(&row).Error; err != nil {
			return err
		}
		row.Name = name
		return tx.Save(&row).Error
	})
	if err != nil {
		return model.User{}, mapGormErr(err)
	}
	return row.toModel(), nil
}

// DeleteUser removes the user's queue entries and attendance with it.
func (s *Store) DeleteUser(ctx context.Context, code int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userRow
		if err := tx.Where("user_code = ?", code).Take(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", row.ID).Delete(&queueEntryRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", row.ID).Delete(&attendanceRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
	if err != nil {
		return mapGormErr(err)
	}
	return nil
}

func userByCode(tx *gorm.DB, code int64) (userRow, error) {
	var row userRow
	err := tx.Where("user_code = ?", code).Take(&row).Error
	if err != nil {
		return userRow{}, mapGormErr(err)
	}
	return row, nil
}

var _ store.Store = (*Store)(nil)
