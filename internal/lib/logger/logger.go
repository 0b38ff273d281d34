package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	EnvLocal = "local"
	EnvDev   = "development"
	EnvProd  = "production"
)

// New builds the process logger. Local runs get coloured text, everything
// else gets JSON. An explicit level overrides the per-env default.
func New(env, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	switch env {
	case EnvLocal:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	case EnvDev:
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	}

	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			log.SetLevel(lvl)
		} else {
			log.WithField("level", level).Warn("unknown log level, keeping default")
		}
	}
	return log
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func Err(err error) logrus.Fields {
	if err == nil {
		return logrus.Fields{}
	}
	return logrus.Fields{"error": err.Error()}
}
