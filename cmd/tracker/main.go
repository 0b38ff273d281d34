package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rfid-attendance/tracker/internal/config"
	"rfid-attendance/tracker/internal/httpapi"
	"rfid-attendance/tracker/internal/kafka"
	"rfid-attendance/tracker/internal/lib/logger"
	"rfid-attendance/tracker/internal/metrics"
	"rfid-attendance/tracker/internal/services/attendance"
	"rfid-attendance/tracker/internal/store"
	"rfid-attendance/tracker/internal/store/cached"
	"rfid-attendance/tracker/internal/store/gormstore"
	"rfid-attendance/tracker/internal/store/memory"
	"rfid-attendance/tracker/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env, cfg.LogLevel)
	log.WithField("env", cfg.Env).WithField("store", cfg.Store).Info("starting tracker")

	if cfg.Env != logger.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	st, closer, err := openStore(cfg)
	if err != nil {
		log.WithFields(logger.Err(err)).Fatal("failed to init store")
	}
	defer closer()

	m := metrics.New()

	if cfg.AttendanceRetentionDays > 0 {
		if purger, ok := st.(store.Purger); ok {
			go runRetentionLoop(rootCtx, log, m, purger, cfg.AttendanceRetentionDays, cfg.RetentionIntervalHours)
		} else {
			log.Warn("attendance retention enabled but store does not support purge")
		}
	}

	if cfg.RedisAddr != "" {
		rdb, err := cached.NewClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.WithFields(logger.Err(err)).Fatal("failed to connect to redis")
		}
		defer rdb.Close()
		st = cached.New(st, rdb, cfg.UIDCacheTTL, log)
		log.WithField("ttl", cfg.UIDCacheTTL.String()).Info("uid cache enabled")
	}

	opts := []attendance.Option{attendance.WithMetrics(m)}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := producer.Close(); err != nil {
				log.WithFields(logger.Err(err)).Warn("failed to close kafka producer")
			}
		}()
		opts = append(opts, attendance.WithPublisher(producer))
		log.WithField("topic", cfg.KafkaTopic).Info("attendance feed enabled")
	}

	svc := attendance.New(st, log, opts...)
	srv := httpapi.NewServer(cfg, svc, m, log)

	if !cfg.AuthEnabled() {
		log.Warn("TRACKER_AUTH_TOKEN is empty, API is unauthenticated")
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr()).Info("tracker listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithFields(logger.Err(err)).Error("server error")
		}
	}

	cancelRoot()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.WithFields(logger.Err(err)).Warn("graceful shutdown failed")
	}
	log.Info("tracker stopped")
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewStore(), func() {}, nil
	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("postgres store needs TRACKER_DATABASE_URL or DATABASE_URL")
		}
		pg, err := postgres.NewStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.StoreSQLite:
		gs, err := gormstore.Open(gormstore.DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return gs, func() { _ = gs.Close() }, nil
	case config.StoreMySQL:
		if cfg.MySQLDSN == "" {
			return nil, nil, errors.New("mysql store needs TRACKER_MYSQL_DSN")
		}
		gs, err := gormstore.Open(gormstore.DriverMySQL, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return gs, func() { _ = gs.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func runRetentionLoop(
	ctx context.Context,
	log logrus.FieldLogger,
	m *metrics.Metrics,
	purger store.Purger,
	retentionDays int,
	intervalHours int,
) {
	retention := time.Duration(retentionDays) * 24 * time.Hour
	interval := time.Duration(intervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	log = log.WithField("op", "retention")

	runOnce := func() {
		before := time.Now().UTC().Add(-retention)
		ctxPurge, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		n, err := purger.PurgeAttendanceBefore(ctxPurge, before)
		if err != nil {
			log.WithFields(logger.Err(err)).Error("retention purge failed")
			return
		}
		m.ObservePurged(n)
		if n > 0 {
			log.WithField("purged", n).WithField("before", before.Format(time.RFC3339)).Info("attendance events purged")
		}
	}

	runOnce()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runOnce()
		}
	}
}
