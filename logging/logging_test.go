package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error"} {
		logger, err := New(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}
	logger, err := New("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = New("loud")
	require.Error(t, err)
}
