package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestOpenSink(t *testing.T) {
	dir := t.TempDir()

	_, err := openSink(filepath.Join(dir, "missing", "app.log"))
	require.Error(t, err)

	ws, err := openSink("")
	require.NoError(t, err)
	require.NotNil(t, ws)
}

func TestNewLoggerWritesToSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "circulation.log")

	log := NewLogger(Log{LogLevel: zapcore.InfoLevel, Sink: path}, "circulation")
	log.Info("ready")
	log.Debug("hidden")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"logger":"circulation"`)
	require.Contains(t, string(data), `"msg":"ready"`)
	require.NotContains(t, string(data), "hidden")
}
