package gormstore

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

const pendingColumns = `queue_entries.id as entry_id, users.name as user_name, users.user_code as user_code,
	scanners.name as scanner_name, queue_entries.created_at as created_at`

func (s *Store) Enqueue(ctx context.Context, req store.EnqueueRequest) (model.QueueEntry, error) {
	var row queueEntryRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := userByCode(tx, req.UserCode)
		if err != nil {
			return err
		}
		sc, err := scannerByName(tx, strings.TrimSpace(req.ScannerName))
		if err != nil {
			return err
		}

		row = queueEntryRow{ID: newID(), UserID: u.ID, ScannerID: sc.ID}
		return tx.Create(&row).Error
	})
	if err != nil {
		return model.QueueEntry{}, mapGormErr(err)
	}
	return row.toModel(), nil
}

func (s *Store) pendingQuery(tx *gorm.DB) *gorm.DB {
	return tx.Table("queue_entries").
		Select(pendingColumns).
		Joins("join users on users.id = queue_entries.user_id").
		Joins("join scanners on scanners.id = queue_entries.scanner_id").
		Order("queue_entries.seq asc")
}

func (s *Store) NextPending(ctx context.Context, scannerName string) (*model.PendingBinding, error) {
	db := s.db.WithContext(ctx)
	if _, err := scannerByName(db, scannerName); err != nil {
		return nil, err
	}

	var rows []pendingRow
	if err := s.pendingQuery(db).Where("scanners.name = ?", scannerName).Limit(1).Scan(&rows).Error; err != nil {
		return nil, mapGormErr(err)
	}
	if len(rows) == 0 {
		return nil, store.ErrQueueEmpty
	}
	p := rows[0].toModel()
	return &p, nil
}

func (s *Store) ListQueue(ctx context.Context, f store.QueueFilter) ([]model.PendingBinding, error) {
	q := s.pendingQuery(s.db.WithContext(ctx))
	if strings.TrimSpace(f.ScannerName) != "" {
		q = q.Where("scanners.name = ?", f.ScannerName)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []pendingRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, mapGormErr(err)
	}

	out := make([]model.PendingBinding, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// ResolveQueueEntry deletes the entry; deleting nothing is not an error.
func (s *Store) ResolveQueueEntry(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Delete(&queueEntryRow{}).Error
	return mapGormErr(err)
}
