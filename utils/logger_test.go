package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/farmqa/config"
)

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	prev := Logger
	t.Cleanup(func() { Logger, Sugar = prev, prev.Sugar() })
	logger, err := InitLogger(config.AppConfig{LogLevel: "debug", LogPath: path, DeployVersion: "test"})
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"version":"test"`)
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := InitLogger(config.AppConfig{LogLevel: "chatty"})
	assert.Error(t, err)
}
