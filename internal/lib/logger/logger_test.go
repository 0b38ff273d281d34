package logger

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New(EnvLocal, "").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New(EnvProd, "").GetLevel())
	assert.Equal(t, logrus.WarnLevel, New(EnvProd, "warn").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New(EnvProd, "loud").GetLevel())
}

func TestNewFormatter(t *testing.T) {
	_, isText := New(EnvLocal, "").Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
	_, isJSON := New(EnvDev, "").Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestErr(t *testing.T) {
	assert.Equal(t, logrus.Fields{"error": "boom"}, Err(errors.New("boom")))
	assert.Empty(t, Err(nil))
}
