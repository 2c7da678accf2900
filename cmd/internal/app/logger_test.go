package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"debug":     slog.LevelDebug,
		" Warning ": slog.LevelWarn,
		"WARN":      slog.LevelWarn,
		"error":     slog.LevelError,
		"info":      slog.LevelInfo,
		"verbose":   slog.LevelInfo,
		"":          slog.LevelInfo,
	} {
		assert.Equal(t, want, parseLogLevel(in), "level %q", in)
	}
}

func TestJSONLogger_EventShape(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newJSONLogger(&buf, "warn")

	log.Info("auth.login.ok", "user_id", "u1")
	log.Warn("ratelimit.store.fail", "backend", "redis", "fail_open", true)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "info must be filtered at warn level")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "ratelimit.store.fail", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "redis", rec["backend"])
	assert.Equal(t, true, rec["fail_open"])
	assert.Contains(t, rec, "source")
}
