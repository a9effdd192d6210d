package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want logger.LogLevel
	}{
		{"debug", logger.DebugLevel},
		{"INFO", logger.InfoLevel},
		{"", logger.InfoLevel},
		{"warning", logger.WarnLevel},
		{"warn", logger.WarnLevel},
		{"error", logger.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.WarnLevel, true)
	defer logger.InitWithWriter(&bytes.Buffer{}, logger.InfoLevel, true)

	logger.Info().Msg("hidden")
	logger.Warn().Str("monitor", "DP-1").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "DP-1")
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.DebugLevel, true)
	defer logger.InitWithWriter(&bytes.Buffer{}, logger.InfoLevel, true)

	err := errors.New().WithData(errors.ErrUnsupportedDevice, "HDMI-1")
	logger.Get().ErrorWithContext(err, "hardware", "dim").Msg("dim failed")

	out := buf.String()
	assert.Contains(t, out, "unsupported_device")
	assert.Contains(t, out, "hardware")
	assert.Contains(t, out, "dim failed")
}
