package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewWithWriterFormats(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "warn", "json").Info("hidden")
	assert.Empty(t, buf.String())

	NewWithWriter(&buf, "info", "json").Info("shown", slog.String("k", "v"))
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	NewWithWriter(&buf, "info", "text").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
