package slogpretty

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestHandlerKeepsLoggerAttrs(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo)).With("component", "ledger")

	logger.Debug("hidden")
	logger.Info("answer recorded", "user_id", "u1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "answer recorded")
	assert.Contains(t, out, "component=ledger")
	assert.Contains(t, out, "user_id=u1")
}

func TestHandlerGroupsOnlyLaterAttrs(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo)).
		With("component", "ledger").
		WithGroup("req").
		With("id", "r1")

	logger.Info("served", "status", 200)

	out := buf.String()
	assert.Contains(t, out, "component=ledger")
	assert.NotContains(t, out, "req.component")
	assert.Contains(t, out, "req.id=r1")
	assert.Contains(t, out, "req.status=200")
}

func TestNewSelectsFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "json", "warn").Info("skipped")
	New(&buf, "json", "warn").Warn("kept", "k", 1)
	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}
