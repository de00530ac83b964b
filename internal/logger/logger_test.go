package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, nil)

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown", String("host", "web-1"))
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "host=web-1")
}

func TestSlogLogger_JSONFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLoggerWithOptions(&buf, Options{Level: LogLevelDebug, Format: FormatJSON}).
		Module("alerting")

	log.Error("dispatch failed",
		Uint64("alert_id", 7),
		Float64("value", 91.5),
		Duration("elapsed", 2*time.Second),
		Error(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatch failed", entry["msg"])
	assert.Equal(t, "alerting", entry["module"])
	assert.InDelta(t, 7, entry["alert_id"], 0)
	assert.InDelta(t, 91.5, entry["value"], 0)
	assert.Equal(t, "boom", entry["error"])
}

func TestErrorField_Nil(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Field{Key: "error", Value: ""}, Error(nil))
}
