package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestSetup_RenamesCoreKeys(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	var buf bytes.Buffer
	logger := setup(&buf, "cellar", "test")
	logger.Info("deposit committed", "shares", "100")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "deposit committed", line["message"])
	assert.Equal(t, "INFO", line["severity"])
	assert.Equal(t, "cellar", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.Equal(t, "100", line["shares"])
	assert.Contains(t, line, "timestamp")
}

func TestWriter(t *testing.T) {
	assert.Equal(t, os.Stdout, Writer(FileOptions{}))

	path := filepath.Join(t.TempDir(), "cellar.log")
	w := Writer(FileOptions{Path: path, MaxBackups: 3})
	rotating, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, path, rotating.Filename)
	assert.Equal(t, 100, rotating.MaxSize)
	assert.Equal(t, 3, rotating.MaxBackups)
}
