package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFileAppendsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerd.log")

	logger, closer, err := NewWithFile("debug", path)
	require.NoError(t, err)
	logger.Debug("hello", "account", "a@example.com")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "a@example.com", rec["account"])
}

func TestNewWithFileWithoutPath(t *testing.T) {
	logger, closer, err := NewWithFile("warn", "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}

func TestNewWithFileBadPath(t *testing.T) {
	_, _, err := NewWithFile("info", filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
