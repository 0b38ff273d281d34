package gormstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

// BindCard runs lookup, ownership check, update and dequeue in one
// transaction. The unique index on users.uid backs the ownership check when
// two binds for one card race on a dialect with row locks.
func (s *Store) BindCard(ctx context.Context, req store.BindCardRequest) (model.BindResult, error) {
	uid := strings.TrimSpace(req.UID)
	if uid == "" {
		return model.BindResult{}, errors.New("uid_required")
	}

	var res model.BindResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u userRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_code = ?", req.UserCode).Take(&u).Error; err != nil {
			return mapGormErr(err)
		}
		sc, err := scannerByName(tx, req.ScannerName)
		if err != nil {
			return err
		}

		var entry queueEntryRow
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? and scanner_id = ?", u.ID, sc.ID).Take(&entry).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotQueued
			}
			return err
		}

		var owner userRow
		err = tx.Where("uid = ?", uid).Take(&owner).Error
		switch {
		case err == nil && owner.ID != u.ID:
			return store.ErrUIDConflict
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		previous := ""
		if u.UID != nil && *u.UID != uid {
			previous = *u.UID
		}

		u.UID = &uid
		if err := tx.Save(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return store.ErrUIDConflict
			}
			return err
		}
		if err := tx.Delete(&entry).Error; err != nil {
			return err
		}

		res = model.BindResult{
			User:        u.toModel(),
			ScannerName: sc.Name,
			EntryID:     entry.ID,
			PreviousUID: previous,
		}
		return nil
	})
	if err != nil {
		return model.BindResult{}, mapGormErr(err)
	}
	return res, nil
}
