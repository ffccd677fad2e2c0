package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetDataDir(t *testing.T) {
	c := NewDefaultConfig()
	c.SetDataDir("/tmp/ucoind")
	assert.Equal(t, filepath.Join("/tmp/ucoind", DefaultBadgerFile), c.DatabaseDir)
	assert.Equal(t, filepath.Join("/tmp/ucoind", DefaultKeyfile), c.Keyfile())
	assert.Equal(t, filepath.Join("/tmp/ucoind", "ucoind.toml"), c.ConfigFile())

	//an explicit database directory is kept
	c.DatabaseDir = "/var/db"
	c.SetDataDir("/tmp/other")
	assert.Equal(t, "/var/db", c.DatabaseDir)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, LogLevel("info"))
	assert.Equal(t, logrus.WarnLevel, LogLevel("warn"))
	assert.Equal(t, logrus.DebugLevel, LogLevel("nonsense"))

	c := NewDefaultConfig()
	c.LogLevel = "error"
	assert.Equal(t, logrus.ErrorLevel, c.Logger().Logger.Level)
	assert.Equal(t, "ucoind", c.Logger().Data["prefix"])
}

func TestTestConfig(t *testing.T) {
	c := NewTestConfig(t, logrus.DebugLevel)
	assert.Zero(t, c.SyncInterval)
	assert.Equal(t, DefaultWindowSize, c.WindowSize)
	c.Logger().Debug("hello")
}
