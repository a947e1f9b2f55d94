package log

import (
	"os"
	"path/filepath"
	"testing"

	"FuseBox/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileBackedAdapter(t *testing.T) (log.Logger, string) {
	t.Helper()

	logFile := filepath.Join(t.TempDir(), "adapter_test.log")
	cfg := &conf.Log{
		Level:      "debug",
		Format:     "json",
		OutputFile: logFile,
		Env:        "production",
	}

	zapLog, err := NewZapLogger(cfg)
	require.NoError(t, err)
	return NewKratosAdapter(zapLog), logFile
}

func TestNewKratosAdapter(t *testing.T) {
	cfg := &conf.Log{
		Level:  "info",
		Format: "json",
		Env:    "production",
	}

	zapLog, err := NewZapLogger(cfg)
	require.NoError(t, err)

	adapter := NewKratosAdapter(zapLog)
	require.NotNil(t, adapter)

	var _ log.Logger = adapter
}

func TestKratosAdapter_Log_EmptyKeyvals(t *testing.T) {
	adapter, _ := newFileBackedAdapter(t)
	assert.NoError(t, adapter.Log(log.LevelInfo))
}

func TestKratosAdapter_LogLevels(t *testing.T) {
	levels := []log.Level{
		log.LevelDebug,
		log.LevelInfo,
		log.LevelWarn,
		log.LevelError,
		// Fatal is not exercised: it calls os.Exit
	}

	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			adapter, logFile := newFileBackedAdapter(t)

			require.NoError(t, adapter.Log(level, "circuit_id", "payments", "reason", "probe failed"))

			content, err := os.ReadFile(logFile)
			require.NoError(t, err)
			assert.Contains(t, string(content), `"circuit_id":"payments"`)
			assert.Contains(t, string(content), `"reason":"probe failed"`)
		})
	}
}

func TestKratosAdapter_OddKeyvals(t *testing.T) {
	adapter, logFile := newFileBackedAdapter(t)

	// a trailing key without a value is dropped, not an error
	require.NoError(t, adapter.Log(log.LevelInfo, "circuit_id", "payments", "dangling"))

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"circuit_id":"payments"`)
	assert.NotContains(t, string(content), "dangling")
}
