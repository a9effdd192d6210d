package hardware_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/hardware"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacklight(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "intel_backlight")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brightness"), []byte("19200\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "max_brightness"), []byte("96000\n"), 0o644))

	b := hardware.NewBacklight(root)
	panel := monitor.Monitor{ID: "eDP-1", Internal: true}

	reading, err := b.Brightness(context.Background(), panel)
	require.NoError(t, err)
	assert.Equal(t, hardware.Brightness{Current: 19200, Max: 96000}, reading)

	require.NoError(t, b.SetBrightness(context.Background(), panel, 13440))
	data, err := os.ReadFile(filepath.Join(dir, "brightness"))
	require.NoError(t, err)
	assert.Equal(t, "13440", string(data))
}

func TestBacklightMissingDevice(t *testing.T) {
	b := hardware.NewBacklight(t.TempDir())
	_, err := b.Brightness(context.Background(), monitor.Monitor{ID: "eDP-1", Internal: true})
	assert.True(t, errors.HasCode(err, errors.ErrUnsupportedDevice))
}

type recordingBackend struct {
	hits int
}

func (r *recordingBackend) Brightness(context.Context, monitor.Monitor) (hardware.Brightness, error) {
	r.hits++
	return hardware.Brightness{}, nil
}

func (r *recordingBackend) SetBrightness(context.Context, monitor.Monitor, int) error {
	r.hits++
	return nil
}

func TestRouter(t *testing.T) {
	internal, external := &recordingBackend{}, &recordingBackend{}
	router := hardware.Router{Internal: internal, External: external}

	_, _ = router.Brightness(context.Background(), monitor.Monitor{ID: "eDP-1", Internal: true})
	_ = router.SetBrightness(context.Background(), monitor.Monitor{ID: "DP-1"}, 10)

	assert.Equal(t, 1, internal.hits)
	assert.Equal(t, 1, external.hits)
}
