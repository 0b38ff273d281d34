package attendance

import (
	"context"
	"errors"
	"time"

	"rfid-attendance/tracker/internal/lib/logger"
	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

type Outcome string

const (
	OutcomeBound      Outcome = "bound"
	OutcomeAttendance Outcome = "attendance"
)

// Scan is one card read reported by a scanner. UserCode is the code the
// scanner was shown by NextPending; zero means the scanner had nothing
// pending.
type Scan struct {
	ScannerName string
	UID         string
	UserCode    int64
}

type ScanResult struct {
	Outcome    Outcome                `json:"outcome"`
	Binding    *model.BindResult      `json:"binding,omitempty"`
	Attendance *model.AttendanceEvent `json:"attendance,omitempty"`
}

// ReportScan routes a card read. With no UserCode the read is an
// attendance tap and the card must already be bound. With a UserCode the read
// completes that user's pending binding on the scanner; a card held by
// another user is rejected with ErrUIDConflict and nothing is recorded.
func (s *Service) ReportScan(ctx context.Context, scan Scan) (ScanResult, error) {
	const op = "attendance.ReportScan"
	uid := model.NormalizeUID(scan.UID)
	log := s.log.WithField("op", op).WithField("scanner", scan.ScannerName).WithField("uid", uid)

	if uid == "" {
		return ScanResult{}, errorf(op, ErrInvalidUID)
	}

	if scan.UserCode == 0 {
		if err := s.checkScanner(ctx, op, scan.ScannerName); err != nil {
			s.observeScanErr(err)
			return ScanResult{}, err
		}
		_, err := s.store.GetUserByUID(ctx, uid)
		switch {
		case errors.Is(err, store.ErrNotFound):
			log.Info("unbound card presented with nothing pending")
			s.metrics.ObserveScan("unknown_card")
			return ScanResult{}, errorf(op, ErrUnknownCard)
		case err != nil:
			log.WithFields(logger.Err(err)).Error("uid lookup failed")
			s.metrics.ObserveScan("error")
			return ScanResult{}, mapStoreErr(op, err)
		}
		return s.scanAttendance(ctx, op, scan.ScannerName, uid)
	}

	res, err := s.store.BindCard(ctx, store.BindCardRequest{
		ScannerName: scan.ScannerName,
		UID:         uid,
		UserCode:    scan.UserCode,
	})
	if errors.Is(err, store.ErrNotQueued) {
		// A reader that repeats a read after the binding completed finds
		// the entry gone and the card already on the expected user.
		if owner, lerr := s.store.GetUserByUID(ctx, uid); lerr == nil && owner.UserCode == scan.UserCode {
			log.WithField("user_code", scan.UserCode).Debug("repeated read of a just-bound card")
			return s.scanAttendance(ctx, op, scan.ScannerName, uid)
		}
	}
	if err != nil {
		mapped := mapStoreErr(op, err)
		s.observeScanErr(mapped)
		log.WithField("user_code", scan.UserCode).WithField("reason", err.Error()).Warn("bind rejected")
		return ScanResult{}, mapped
	}

	s.metrics.ObserveScan(string(OutcomeBound))
	entry := log.WithField("user_code", res.User.UserCode)
	if res.PreviousUID != "" {
		entry = entry.WithField("previous_uid", res.PreviousUID)
	}
	entry.Info("card bound")

	s.publish(ctx, FeedEvent{
		Type:        FeedBinding,
		UserCode:    res.User.UserCode,
		UserName:    res.User.Name,
		UID:         uid,
		PreviousUID: res.PreviousUID,
		ScannerName: res.ScannerName,
		At:          s.now().UTC(),
	})
	return ScanResult{Outcome: OutcomeBound, Binding: &res}, nil
}

func (s *Service) scanAttendance(ctx context.Context, op, scannerName, uid string) (ScanResult, error) {
	ev, err := s.record(ctx, op, store.RecordAttendanceRequest{
		UID:         uid,
		ScannerName: scannerName,
		At:          s.now(),
	})
	if err != nil {
		s.observeScanErr(err)
		return ScanResult{}, err
	}
	s.metrics.ObserveScan(string(OutcomeAttendance))
	return ScanResult{Outcome: OutcomeAttendance, Attendance: &ev}, nil
}

// Record appends one attendance event for the owner of uid. A zero at
// means now. A non-empty scannerName must name a registered scanner.
func (s *Service) Record(ctx context.Context, uid string, at time.Time, scannerName string) (model.AttendanceEvent, error) {
	const op = "attendance.Record"

	uid = model.NormalizeUID(uid)
	if uid == "" {
		return model.AttendanceEvent{}, errorf(op, ErrInvalidUID)
	}
	if scannerName != "" {
		if err := s.checkScanner(ctx, op, scannerName); err != nil {
			return model.AttendanceEvent{}, err
		}
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.record(ctx, op, store.RecordAttendanceRequest{UID: uid, ScannerName: scannerName, At: at})
}

// checkScanner fails with ErrNotFound when name is not a registered scanner.
// Device tokens outlive their scanner, so this is the point where a deleted
// scanner stops being able to report.
func (s *Service) checkScanner(ctx context.Context, op, name string) error {
	if _, err := s.store.GetScannerByName(ctx, name); err != nil {
		return mapStoreErr(op, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, op string, req store.RecordAttendanceRequest) (model.AttendanceEvent, error) {
	log := s.log.WithField("op", op).WithField("uid", req.UID)

	req.At = req.At.UTC()
	ev, err := s.store.RecordAttendance(ctx, req)
	if err != nil {
		if errors.Is(err, store.ErrUnknownCard) {
			log.Info("attendance for unknown card")
		} else {
			log.WithFields(logger.Err(err)).Error("failed to record attendance")
		}
		return model.AttendanceEvent{}, mapStoreErr(op, err)
	}

	s.metrics.ObserveAttendance()
	log.WithField("user_code", ev.UserCode).Info("attendance recorded")

	s.publish(ctx, FeedEvent{
		Type:        FeedAttendance,
		EventID:     ev.ID,
		UserCode:    ev.UserCode,
		UserName:    ev.UserName,
		UID:         req.UID,
		ScannerName: ev.ScannerName,
		At:          ev.Timestamp,
	})
	return ev, nil
}

func (s *Service) ListAttendance(ctx context.Context, f store.AttendanceFilter) ([]model.AttendanceEvent, error) {
	const op = "attendance.ListAttendance"

	events, err := s.store.ListAttendance(ctx, f)
	if err != nil {
		return nil, mapStoreErr(op, err)
	}
	return events, nil
}

func (s *Service) observeScanErr(err error) {
	switch {
	case errors.Is(err, ErrUnknownCard):
		s.metrics.ObserveScan("unknown_card")
	case errors.Is(err, ErrUIDConflict):
		s.metrics.ObserveScan("uid_conflict")
	case errors.Is(err, ErrNotQueued):
		s.metrics.ObserveScan("not_queued")
	case errors.Is(err, ErrNotFound):
		s.metrics.ObserveScan("not_found")
	default:
		s.metrics.ObserveScan("error")
	}
}
