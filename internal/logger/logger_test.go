package logger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/logger"
)

func jsonLogger(buf *bytes.Buffer, level logger.Level) *logger.Logger {
	return logger.New(
		logger.WithOutput(buf),
		logger.WithLevel(level),
		logger.WithFormat(logger.FormatJSON),
		logger.WithCaller(false),
	)
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DEBUG, logger.ParseLevel("debug"))
	assert.Equal(t, logger.WARN, logger.ParseLevel("warning"))
	assert.Equal(t, logger.ERROR, logger.ParseLevel("ERROR"))
	assert.Equal(t, logger.INFO, logger.ParseLevel("nonsense"))

	assert.True(t, logger.ValidLevel("warn"))
	assert.False(t, logger.ValidLevel(""))
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, logger.WARN)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown %d", 1)
	l.Error("shown %d", 2)

	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "warn", got[0]["level"])
	assert.Equal(t, "shown 1", got[0]["message"])
	assert.Equal(t, "error", got[1]["level"])
}

func TestLogger_PrefixAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, logger.DEBUG).
		WithPrefix("governor").
		WithField("learner", "abc").
		WithFields(map[string]any{"hour": 2})

	l.Info("gate open")
	l.WithPrefix("autoadvance").Info("ready")

	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "governor", got[0]["component"])
	assert.Equal(t, "abc", got[0]["learner"])
	assert.EqualValues(t, 2, got[0]["hour"])
	assert.Equal(t, "autoadvance", got[1]["component"], "prefix replaces rather than stacks")
	assert.Equal(t, "abc", got[1]["learner"])
}

func TestLogger_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.WithOutput(&buf), logger.WithColors(false), logger.WithPrefix("api"))
	l.Info("listening on %s", ":8080")

	out := buf.String()
	assert.Contains(t, out, "listening on :8080")
	assert.Contains(t, out, "component=api")
	assert.Contains(t, out, "logger_test.go", "caller points at the call site")
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, logger.INFO).WithField("request_id", "r1")

	ctx := logger.NewContext(context.Background(), l)
	assert.Same(t, l, logger.FromContext(ctx))
	assert.Same(t, logger.Default(), logger.FromContext(context.Background()))
}
