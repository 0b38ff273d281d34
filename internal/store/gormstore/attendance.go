package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

func (s *Store) RecordAttendance(ctx context.Context, req store.RecordAttendanceRequest) (model.AttendanceEvent, error) {
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	var ev model.AttendanceEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u userRow
		if err := tx.Where("uid = ?", strings.TrimSpace(req.UID)).Take(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrUnknownCard
			}
			return err
		}

		row := attendanceRow{
			ID:          newID(),
			UserID:      u.ID,
			ScannerName: strings.TrimSpace(req.ScannerName),
			RecordedAt:  at.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		ev = model.AttendanceEvent{
			ID:          row.ID,
			UserID:      u.ID,
			UserCode:    u.UserCode,
			UserName:    u.Name,
			ScannerName: row.ScannerName,
			Timestamp:   row.RecordedAt,
		}
		return nil
	})
	if err != nil {
		return model.AttendanceEvent{}, mapGormErr(err)
	}
	return ev, nil
}

func (s *Store) ListAttendance(ctx context.Context, f store.AttendanceFilter) ([]model.AttendanceEvent, error) {
	q := s.db.WithContext(ctx).Table("attendance_events").
		Select(`attendance_events.id, attendance_events.user_id, users.user_code, users.name as user_name,
			attendance_events.scanner_name, attendance_events.recorded_at`).
		Joins("join users on users.id = attendance_events.user_id")

	if f.UserCode != 0 {
		q = q.Where("users.user_code = ?", f.UserCode)
	}
	if !f.Since.IsZero() {
		q = q.Where("attendance_events.recorded_at >= ?", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		q = q.Where("attendance_events.recorded_at < ?", f.Until.UTC())
	}
	q = q.Order("attendance_events.recorded_at desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []attendanceView
	if err := q.Scan(&rows).Error; err != nil {
		return nil, mapGormErr(err)
	}

	out := make([]model.AttendanceEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Store) PurgeAttendanceBefore(ctx context.Context, before time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where("recorded_at < ?", before.UTC()).Delete(&attendanceRow{})
	if res.Error != nil {
		return 0, mapGormErr(res.Error)
	}
	return int(res.RowsAffected), nil
}
