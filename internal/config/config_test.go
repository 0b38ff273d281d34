package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var trackerVars = []string{
	"TRACKER_ENV", "TRACKER_PORT", "TRACKER_LOG_LEVEL", "TRACKER_AUTH_TOKEN", "TRACKER_JWT_SECRET",
	"TRACKER_DEVICE_TOKEN_TTL", "TRACKER_STORE", "TRACKER_DATABASE_URL", "DATABASE_URL",
	"TRACKER_SQLITE_PATH", "TRACKER_MYSQL_DSN", "TRACKER_REDIS_ADDR", "TRACKER_REDIS_PASSWORD",
	"TRACKER_UID_CACHE_TTL", "TRACKER_KAFKA_BROKERS", "TRACKER_KAFKA_TOPIC",
	"TRACKER_ATTENDANCE_RETENTION_DAYS", "TRACKER_RETENTION_INTERVAL_HOURS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range trackerVars {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg := fromEnv()
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "attendance.db", cfg.SQLitePath)
	assert.Equal(t, 720*time.Hour, cfg.DeviceTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.UIDCacheTTL)
	assert.Equal(t, "attendance-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Zero(t, cfg.AttendanceRetentionDays)
	assert.Equal(t, 24, cfg.RetentionIntervalHours)
	assert.False(t, cfg.AuthEnabled())
}

func TestDatabaseURLSelectsPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/tracker")

	cfg := fromEnv()
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://localhost/tracker", cfg.DatabaseURL)

	t.Setenv("TRACKER_STORE", "SQLite")
	assert.Equal(t, StoreSQLite, fromEnv().Store)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKER_PORT", "9090")
	t.Setenv("TRACKER_AUTH_TOKEN", "operator")
	t.Setenv("TRACKER_UID_CACHE_TTL", "30s")
	t.Setenv("TRACKER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("TRACKER_ATTENDANCE_RETENTION_DAYS", "90")

	cfg := fromEnv()
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, "operator", cfg.JWTSecret)
	assert.Equal(t, 30*time.Second, cfg.UIDCacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90, cfg.AttendanceRetentionDays)
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKER_PORT", "99999")
	t.Setenv("TRACKER_DEVICE_TOKEN_TTL", "forever")
	t.Setenv("TRACKER_ATTENDANCE_RETENTION_DAYS", "-1")
	t.Setenv("TRACKER_RETENTION_INTERVAL_HOURS", "0")

	cfg := fromEnv()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 720*time.Hour, cfg.DeviceTokenTTL)
	assert.Zero(t, cfg.AttendanceRetentionDays)
	assert.Equal(t, 24, cfg.RetentionIntervalHours)
}
