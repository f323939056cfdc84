package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerWith(t *testing.T) {
	t.Run("explicit level", func(t *testing.T) {
		logger, err := NewLoggerWith("debug", "json")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logger, err := NewLoggerWith("chatty", "")
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("console format", func(t *testing.T) {
		logger, err := NewLoggerWith("warn", "Console")
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	})
}

func TestNewLoggerReadsEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	logger, err := NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
}
