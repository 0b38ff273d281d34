package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMySQL    = "mysql"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	AuthToken      string
	JWTSecret      string
	DeviceTokenTTL time.Duration

	Store       string
	DatabaseURL string
	SQLitePath  string
	MySQLDSN    string

	RedisAddr     string
	RedisPassword string
	UIDCacheTTL   time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	AttendanceRetentionDays int
	RetentionIntervalHours  int
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win over
// the file. Malformed numeric values fall back to their defaults.
func Load() Config {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() Config {
	cfg := Config{
		Env:                     envOr("TRACKER_ENV", "local"),
		Port:                    8080,
		LogLevel:                os.Getenv("TRACKER_LOG_LEVEL"),
		AuthToken:               os.Getenv("TRACKER_AUTH_TOKEN"),
		JWTSecret:               os.Getenv("TRACKER_JWT_SECRET"),
		DeviceTokenTTL:          720 * time.Hour,
		Store:                   strings.ToLower(os.Getenv("TRACKER_STORE")),
		DatabaseURL:             os.Getenv("TRACKER_DATABASE_URL"),
		SQLitePath:              envOr("TRACKER_SQLITE_PATH", "attendance.db"),
		MySQLDSN:                os.Getenv("TRACKER_MYSQL_DSN"),
		RedisAddr:               os.Getenv("TRACKER_REDIS_ADDR"),
		RedisPassword:           os.Getenv("TRACKER_REDIS_PASSWORD"),
		UIDCacheTTL:             5 * time.Minute,
		KafkaTopic:              envOr("TRACKER_KAFKA_TOPIC", "attendance-events"),
		AttendanceRetentionDays: 0,
		RetentionIntervalHours:  24,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if cfg.Store == "" {
		if cfg.DatabaseURL != "" {
			cfg.Store = StorePostgres
		} else {
			cfg.Store = StoreMemory
		}
	}

	// Device tokens are signed with the operator token when no dedicated
	// secret is configured.
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.AuthToken
	}

	if v := os.Getenv("TRACKER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			cfg.Port = p
		}
	}

	if v := os.Getenv("TRACKER_DEVICE_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DeviceTokenTTL = d
		}
	}

	if v := os.Getenv("TRACKER_UID_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.UIDCacheTTL = d
		}
	}

	if v := os.Getenv("TRACKER_KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if v := os.Getenv("TRACKER_ATTENDANCE_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AttendanceRetentionDays = n
		}
	}

	if v := os.Getenv("TRACKER_RETENTION_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionIntervalHours = n
		}
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

func (c Config) AuthEnabled() bool {
	return c.AuthToken != ""
}
