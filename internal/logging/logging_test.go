package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.log")
	logger, err := New(Config{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.Debug("epoch complete")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"epoch complete"`)
}

func TestLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.log")
	logger, err := New(Config{Level: "warn", File: path})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "shown")
}

func TestRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
	_, err = New(Config{Format: "xml"})
	require.Error(t, err)
}
