// Package cached puts a redis read-through cache in front of UID lookups.
//
// The cache only answers "which user holds this card" for routing scans.
// Bind, record and delete still go to the wrapped store, which owns every
// uniqueness check, so a stale entry can never bind or record against the
// wrong user.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"rfid-attendance/tracker/internal/lib/logger"
	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/store"
)

const (
	keyPrefix = "tracker:uid:"
	genPrefix = "tracker:uidgen:"
)

// errStale aborts a cache fill whose card was invalidated while the wrapped
// store was being read.
var errStale = errors.New("uid cache fill raced an invalidation")

type Store struct {
	store.Store

	rdb *redis.Client
	ttl time.Duration
	log logrus.FieldLogger
}

func New(next store.Store, rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *Store {
	return &Store{
		Store: next,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.WithField("component", "uid_cache"),
	}
}

func uidKey(uid string) string {
	return keyPrefix + uid
}

// genKey counts invalidations of one card. A fill only lands if the count is
// unchanged since before the store read.
func genKey(uid string) string {
	return genPrefix + uid
}

func (s *Store) genTTL() time.Duration {
	return s.ttl + time.Hour
}

func (s *Store) GetUserByUID(ctx context.Context, uid string) (*model.User, error) {
	b, err := s.rdb.Get(ctx, uidKey(uid)).Bytes()
	switch {
	case err == nil:
		var u model.User
		if jsonErr := json.Unmarshal(b, &u); jsonErr == nil {
			return &u, nil
		}
		s.forget(ctx, uid)
	case !errors.Is(err, redis.Nil):
		s.log.WithFields(logger.Err(err)).Warn("uid cache read failed")
	}

	gen, genErr := s.generation(ctx, uid)

	u, err := s.Store.GetUserByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		s.remember(ctx, *u, gen)
	}
	return u, nil
}

func (s *Store) generation(ctx context.Context, uid string) (int64, error) {
	gen, err := s.rdb.Get(ctx, genKey(uid)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *Store) BindCard(ctx context.Context, req store.BindCardRequest) (model.BindResult, error) {
	res, err := s.Store.BindCard(ctx, req)
	if err != nil {
		return res, err
	}
	s.forget(ctx, req.UID, res.PreviousUID)
	return res, nil
}

func (s *Store) RenameUser(ctx context.Context, code int64, name string) (model.User, error) {
	u, err := s.Store.RenameUser(ctx, code, name)
	if err != nil {
		return u, err
	}
	if u.Bound() {
		s.forget(ctx, *u.UID)
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, code int64) error {
	u, err := s.Store.GetUserByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteUser(ctx, code); err != nil {
		return err
	}
	if u.Bound() {
		s.forget(ctx, *u.UID)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	return s.Store.Ping(ctx)
}

func (s *Store) remember(ctx context.Context, u model.User, gen int64) {
	if !u.Bound() {
		return
	}
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	uid := *u.UID
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey(uid)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, uidKey(uid), b, s.ttl)
			return nil
		})
		return err
	}, genKey(uid))
	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		s.log.WithField("uid", uid).Debug("uid cache fill skipped after invalidation")
	default:
		s.log.WithFields(logger.Err(err)).Warn("uid cache write failed")
	}
}

func (s *Store) forget(ctx context.Context, uids ...string) {
	var keys []string
	for _, uid := range uids {
		if uid != "" {
			keys = append(keys, uid)
		}
	}
	if len(keys) == 0 {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, uid := range keys {
			p.Del(ctx, uidKey(uid))
			p.Incr(ctx, genKey(uid))
			p.Expire(ctx, genKey(uid), s.genTTL())
		}
		return nil
	})
	if err != nil {
		s.log.WithFields(logger.Err(err)).Warn("uid cache invalidation failed")
	}
}
