package gormstore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"rfid-attendance/tracker/internal/model"
)

func (s *Store) CreateScanner(ctx context.Context, sc model.Scanner) (model.Scanner, error) {
	name := strings.TrimSpace(sc.Name)
	if name == "" {
		return model.Scanner{}, errors.New("name_required")
	}

	row := scannerRow{ID: newID(), Name: name}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Scanner{}, mapGormErr(err)
	}
	return row.toModel(), nil
}

func (s *Store) GetScannerByName(ctx context.Context, name string) (*model.Scanner, error) {
	row, err := scannerByName(s.db.WithContext(ctx), name)
	if err != nil {
		return nil, err
	}
	sc := row.toModel()
	return &sc, nil
}

func (s *Store) ListScanners(ctx context.Context) ([]model.Scanner, error) {
	var rows []scannerRow
	if err := s.db.WithContext(ctx).Order("name asc").Find(&rows).Error; err != nil {
		return nil, mapGormErr(err)
	}

	out := make([]model.Scanner, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// DeleteScanner drops the scanner's pending queue entries with it.
func (s *Store) DeleteScanner(ctx context.Context, name string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := scannerByName(tx, name)
		if err != nil {
			return err
		}
		if err := tx.Where("scanner_id = ?", row.ID).Delete(&queueEntryRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
	return mapGormErr(err)
}

func scannerByName(tx *gorm.DB, name string) (scannerRow, error) {
	var row scannerRow
	err := tx.Where("name = ?", name).Take(&row).Error
	if err != nil {
		return scannerRow{}, mapGormErr(err)
	}
	return row, nil
}
