package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewWritesJSONWithServiceFields(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := New(Options{Service: "cart-worker", Env: "test", Level: "warn", Output: &buf})

	log.Info("dropped")
	log.Warn("cart_status_empty", "cart_id", "c1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "cart_status_empty", rec["msg"])
	assert.Equal(t, "cart-worker", rec["service"])
	assert.Equal(t, "test", rec["env"])
	assert.Equal(t, "c1", rec["cart_id"])
}
