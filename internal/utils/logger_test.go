package utils

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewLogger(core)

	logger.Debug("hidden", nil)
	logger.Info("device connected", map[string]interface{}{"session_id": "s1", "generation": 3})
	logger.Error("purchase failed", map[string]interface{}{"error": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "device connected", entries[0].Message)
	assert.Equal(t, "s1", entries[0].ContextMap()["session_id"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, WARNING, ParseLogLevel("warn"))
	assert.Equal(t, INFO, ParseLogLevel("nonsense"))
}

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kaika.log")
	require.NoError(t, InitLogger(path, INFO))
	GetLogger().Infof("hello %s", "file")
	_ = GetLogger().Sync()
	assert.FileExists(t, path)
}
