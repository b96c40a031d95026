package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"":        INFO,
		"warning": WARN,
		"Error":   ERROR,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	buf := captureStdLog(t)
	SetLevel(WARN)
	t.Cleanup(func() { SetLevel(INFO) })

	InfoC("dice", "hidden")
	WarnC("dice", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] dice: shown")
}

func TestFieldsAreSortedAndMasked(t *testing.T) {
	buf := captureStdLog(t)

	InfoCF("discord", "connected", map[string]any{
		"user_id": "1",
		"token":   "super-secret",
		"channel": "c",
	})

	out := buf.String()
	assert.Contains(t, out, "{channel=c, token=[REDACTED], user_id=1}")
	assert.NotContains(t, out, "super-secret")
}

func TestFileLogging(t *testing.T) {
	captureStdLog(t)
	path := filepath.Join(t.TempDir(), "picodice.log")
	require.NoError(t, EnableFileLogging(path))
	t.Cleanup(DisableFileLogging)

	ErrorCF("router", "dispatch failed", map[string]any{"command": "roll"})
	DisableFileLogging()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "router", entry.Component)
	assert.Equal(t, "dispatch failed", entry.Message)
	assert.Equal(t, "roll", entry.Fields["command"])
}
