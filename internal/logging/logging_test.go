package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesLogFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := New("info", dir)
	require.NoError(t, err)

	logger.Info("report generated")
	logger.Debug("not written at info level")
	_ = logger.Sync()

	b, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(b), "report generated")
	assert.NotContains(t, string(b), "not written")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "")
	require.Error(t, err)
}
