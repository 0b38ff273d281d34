// Package attendance holds the queue manager, the binding matcher and the
// attendance recorder on top of a store.Store.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"rfid-attendance/tracker/internal/lib/logger"
	"rfid-attendance/tracker/internal/metrics"
	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

// Publisher receives the attendance feed. kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

type Service struct {
	store     store.Store
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	publisher Publisher
	now       func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		store: st,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, name string, userCode int64) (model.User, error) {
	const op = "attendance.Register"
	log := s.log.WithField("op", op).WithField("user_code", userCode)

	u, err := s.store.CreateUser(ctx, model.User{Name: strings.TrimSpace(name), UserCode: userCode})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			log.Info("user code already registered")
		} else {
			log.WithFields(logger.Err(err)).Error("failed to create user")
		}
		return model.User{}, mapStoreErr(op, err)
	}

	log.Info("user registered")
	return u, nil
}

// LookupUser returns the user registered under code.
func (s *Service) LookupUser(ctx context.Context, code int64) (model.User, error) {
	const op = "attendance.LookupUser"

	u, err := s.store.GetUserByCode(ctx, code)
	if err != nil {
		return model.User{}, mapStoreErr(op, err)
	}
	return *u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	const op = "attendance.ListUsers"

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, mapStoreErr(op, err)
	}
	return users, nil
}

func (s *Service) RenameUser(ctx context.Context, code int64, name string) (model.User, error) {
	const op = "attendance.RenameUser"

	u, err := s.store.RenameUser(ctx, code, strings.TrimSpace(name))
	if err != nil {
		return model.User{}, mapStoreErr(op, err)
	}
	s.log.WithField("op", op).WithField("user_code", code).Info("user renamed")
	return u, nil
}

// DeleteUser removes the user together with its queue entries and
// attendance history.
func (s *Service) DeleteUser(ctx context.Context, code int64) error {
	const op = "attendance.DeleteUser"

	if err := s.store.DeleteUser(ctx, code); err != nil {
		return mapStoreErr(op, err)
	}
	s.log.WithField("op", op).WithField("user_code", code).Info("user deleted")
	return nil
}

func (s *Service) AddScanner(ctx context.Context, name string) (model.Scanner, error) {
	const op = "attendance.AddScanner"

	sc, err := s.store.CreateScanner(ctx, model.Scanner{Name: strings.TrimSpace(name)})
	if err != nil {
		return model.Scanner{}, mapStoreErr(op, err)
	}
	s.log.WithField("op", op).WithField("scanner", sc.Name).Info("scanner added")
	return sc, nil
}

func (s *Service) ListScanners(ctx context.Context) ([]model.Scanner, error) {
	const op = "attendance.ListScanners"

	scanners, err := s.store.ListScanners(ctx)
	if err != nil {
		return nil, mapStoreErr(op, err)
	}
	return scanners, nil
}

// DeleteScanner removes the scanner and every binding request queued on it.
func (s *Service) DeleteScanner(ctx context.Context, name string) error {
	const op = "attendance.DeleteScanner"

	if err := s.store.DeleteScanner(ctx, name); err != nil {
		return mapStoreErr(op, err)
	}
	s.log.WithField("op", op).WithField("scanner", name).Info("scanner deleted")
	return nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	const op = "attendance.Ping"

	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
