package log

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	at := time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC)

	tests := []struct {
		name   string
		fields []any
		want   string
	}{
		{"no fields", nil, "2025-12-06T10:45:00 [INFO] [deposit] updated\n"},
		{"pairs", []any{"object", "12", "status", "registered"}, "2025-12-06T10:45:00 [INFO] [deposit] updated object=12 status=registered\n"},
		{"orphan key", []any{"object", "12", "batch"}, "2025-12-06T10:45:00 [INFO] [deposit] updated object=12 batch=<missing>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, format(at, LevelInfo, CatDeposit, "updated", tt.fields))
		})
	}
}

func TestLog_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	Info(CatDeposit, "Deposit status updated", "object", "12", "status", "registered")

	line := buf.String()
	require.Contains(t, line, "[INFO] [deposit] Deposit status updated object=12 status=registered")
	require.True(t, strings.HasSuffix(line, "\n"))
}

func TestLog_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	ErrorErr(CatDB, "write failed", errors.New("disk full"), "path", "/tmp/x")
	require.Contains(t, buf.String(), "[ERROR] [db] write failed path=/tmp/x error=disk full")

	buf.Reset()
	ErrorErr(CatDB, "write failed", nil)
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestLog_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelWarn)

	Debug(CatConfig, "hidden")
	Info(CatConfig, "hidden")
	Warn(CatConfig, "shown")
	Error(CatConfig, "also shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "[WARN] [config] shown")
	require.Contains(t, buf.String(), "[ERROR] [config] also shown")
}

func TestLog_Subscribe(t *testing.T) {
	InitWriter(&bytes.Buffer{}, LevelInfo)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Subscribe(ctx)
	require.NotNil(t, ch)
	Debug(CatAPI, "below the minimum level")
	Info(CatAPI, "Starting API server", "port", 8080)

	select {
	case ev := <-ch:
		require.Contains(t, ev.Payload, "Starting API server port=8080")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for log event")
	}
}

func TestLog_ReinitClosesOldSubscriptions(t *testing.T) {
	InitWriter(&bytes.Buffer{}, LevelDebug)
	ch := Subscribe(context.Background())

	InitWriter(&bytes.Buffer{}, LevelDebug)

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("old subscription stayed open")
	}
}

func TestLevel_String(t *testing.T) {
	require.Equal(t, "DEBUG", LevelDebug.String())
	require.Equal(t, "INFO", LevelInfo.String())
	require.Equal(t, "WARN", LevelWarn.String())
	require.Equal(t, "ERROR", LevelError.String())
	require.Equal(t, "UNKNOWN", Level(99).String())
	require.Equal(t, "UNKNOWN", Level(-1).String())
}

func TestInit_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := Init(path)
	require.NoError(t, err)

	Info(CatConfig, "doideposit starting")
	cleanup()

	//nolint:gosec // G304: test file path
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "doideposit starting")
}

func TestInit_BadPath(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing", "debug.log"))
	require.Error(t, err)
}
