package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesComponentField(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := New(Config{Level: "debug", Output: &buf})
	require.NoError(t, err)
	defer closer()

	l.Component("dialog").Info().Str("prompt", "default").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dialog", entry["component"])
	assert.Equal(t, "ragchat", entry["service"])
	assert.Equal(t, "default", entry["prompt"])
	assert.Equal(t, "hello", entry["message"])
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)

	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.LogTask("generate_answer", "t0", time.Millisecond, nil)
	assert.Zero(t, buf.Len())

	l.LogTask("generate_answer", "t1", time.Millisecond, errors.New("boom"))
	assert.Contains(t, buf.String(), `"task_id":"t1"`)
	assert.Contains(t, buf.String(), `"task":"generate_answer"`)
	assert.Contains(t, buf.String(), "boom")
}

func TestLoggerWithCaller(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Config{Output: &buf, WithCaller: true})
	require.NoError(t, err)

	l.Info().Msg("where")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragchat.log")
	l, closer, err := New(Config{File: path})
	require.NoError(t, err)
	l.Info().Msg("to file")
	require.NoError(t, closer())
	assert.FileExists(t, path)
}
