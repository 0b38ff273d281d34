package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"rfid-attendance/tracker/internal/lib/logger"
)

type FeedType string

const (
	FeedAttendance FeedType = "attendance"
	FeedBinding    FeedType = "binding"
)

// FeedEvent is the message published for every recorded attendance event
// and every completed binding.
type FeedEvent struct {
	Type        FeedType  `json:"type"`
	EventID     string    `json:"event_id,omitempty"`
	UserCode    int64     `json:"user_code"`
	UserName    string    `json:"user_name"`
	UID         string    `json:"uid"`
	PreviousUID string    `json:"previous_uid,omitempty"`
	ScannerName string    `json:"scanner_name,omitempty"`
	At          time.Time `json:"at"`
}

func errorf(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// publish hands ev to the feed. The write has already committed, so a
// failing broker is logged and counted but never fails the request.
func (s *Service) publish(ctx context.Context, ev FeedEvent) {
	if s.publisher == nil {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return
	}
	key := []byte(strconv.FormatInt(ev.UserCode, 10))
	if err := s.publisher.Publish(ctx, key, value); err != nil {
		s.metrics.ObservePublishError()
		s.log.WithField("op", "attendance.publish").
			WithField("type", ev.Type).
			WithFields(logger.Err(err)).
			Warn("failed to publish feed event")
	}
}
