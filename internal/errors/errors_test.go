package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/monitornap/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrUnsupportedDevice)
	assert.Equal(t, "Monitor does not support hardware dimming", err.Error())

	err = errFactory.Wrap(errors.ErrProbeFailure, fmt.Errorf("connection lost"))
	assert.Equal(t, "Failed to sample monitor activity: connection lost", err.Error())

	err = errFactory.WithData(errors.ErrUnknownMonitor, "HDMI-9")
	assert.Equal(t, "Unknown monitor: HDMI-9", err.Error())

	err = err.WithMessage("no such output")
	assert.Equal(t, "no such output: HDMI-9", err.Error())
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.New(errors.ErrUnsupportedDevice)
	outer := errFactory.Wrap(errors.ErrOperationFailed, inner)
	wrapped := fmt.Errorf("dim DP-1: %w", outer)

	assert.True(t, errors.HasCode(wrapped, errors.ErrOperationFailed))
	assert.True(t, errors.HasCode(wrapped, errors.ErrUnsupportedDevice))
	assert.False(t, errors.HasCode(wrapped, errors.ErrOverlayFailure))
	assert.False(t, errors.HasCode(nil, errors.ErrInternal))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrInternal))
	assert.Equal(t, errors.ErrOperationFailed, errors.CodeOf(wrapped))
}

func TestCoded(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.New(errors.ErrUnsupportedDevice)
	wrapped := fmt.Errorf("dim DP-1: %w", inner)

	assert.Equal(t, errors.ErrUnsupportedDevice, errors.Coded(wrapped, errors.ErrOperationFailed).Code())

	plain := errors.Coded(fmt.Errorf("bus busy"), errors.ErrOperationFailed)
	assert.Equal(t, errors.ErrOperationFailed, plain.Code())
	assert.EqualError(t, plain.Unwrap(), "bus busy")
}
