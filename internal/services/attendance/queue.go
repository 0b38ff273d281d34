package attendance

import (
	"context"
	"errors"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

// Enqueue asks scannerName to bind the next presented card to userCode.
// At most one request per (user, scanner) pair may be pending.
func (s *Service) Enqueue(ctx context.Context, userCode int64, scannerName string) (model.QueueEntry, error) {
	const op = "attendance.Enqueue"
	log := s.log.WithField("op", op).WithField("user_code", userCode).WithField("scanner", scannerName)

	e, err := s.store.Enqueue(ctx, store.EnqueueRequest{UserCode: userCode, ScannerName: scannerName})
	if err != nil {
		log.WithField("reason", err.Error()).Info("enqueue rejected")
		return model.QueueEntry{}, mapStoreErr(op, err)
	}

	s.metrics.ObserveQueue("enqueue")
	log.WithField("entry_id", e.ID).Info("binding request queued")
	return e, nil
}

// NextPending returns the oldest pending request for scannerName, or nil
// when nothing is queued there.
func (s *Service) NextPending(ctx context.Context, scannerName string) (*model.PendingBinding, error) {
	const op = "attendance.NextPending"

	p, err := s.store.NextPending(ctx, scannerName)
	if err != nil {
		if errors.Is(err, store.ErrQueueEmpty) {
			return nil, nil
		}
		return nil, mapStoreErr(op, err)
	}
	return p, nil
}

// GetPending is the scanner-facing name for NextPending.
func (s *Service) GetPending(ctx context.Context, scannerName string) (*model.PendingBinding, error) {
	return s.NextPending(ctx, scannerName)
}

func (s *Service) ListQueue(ctx context.Context, scannerName string, limit int) ([]model.PendingBinding, error) {
	const op = "attendance.ListQueue"

	entries, err := s.store.ListQueue(ctx, store.QueueFilter{ScannerName: scannerName, Limit: limit})
	if err != nil {
		return nil, mapStoreErr(op, err)
	}
	return entries, nil
}

// Resolve drops a queue entry. Resolving an entry that is already gone is
// not an error.
func (s *Service) Resolve(ctx context.Context, entryID string) error {
	const op = "attendance.Resolve"

	if err := s.store.ResolveQueueEntry(ctx, entryID); err != nil {
		return mapStoreErr(op, err)
	}
	s.metrics.ObserveQueue("resolve")
	s.log.WithField("op", op).WithField("entry_id", entryID).Debug("queue entry resolved")
	return nil
}
