// Package gormstore implements store.Store on top of gorm, for the sqlite and
// mysql dialects.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rfid-attendance/tracker/internal/store"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Store struct {
	db *gorm.DB
}

// Open connects with the given driver and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// sqlite allows one writer; a single connection turns concurrent
		// transactions into a queue instead of "database is locked" errors.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&userRow{}, &scannerRow{}, &queueEntryRow{}, &attendanceRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func newID() string {
	return uuid.NewString()
}

func mapGormErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return store.ErrNotFound
	default:
		return err
	}
}
