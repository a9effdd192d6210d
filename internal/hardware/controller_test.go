package hardware_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/hardware"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	values   map[monitor.ID]int
	writes   map[monitor.ID][]int
	readErr  error
	writeErr error
}

func newFakeBackend(values map[monitor.ID]int) *fakeBackend {
	return &fakeBackend{values: values, writes: make(map[monitor.ID][]int)}
}

func (f *fakeBackend) Brightness(_ context.Context, m monitor.Monitor) (hardware.Brightness, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return hardware.Brightness{}, f.readErr
	}
	return hardware.Brightness{Current: f.values[m.ID], Max: 100}, nil
}

func (f *fakeBackend) SetBrightness(_ context.Context, m monitor.Monitor, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.values[m.ID] = value
	f.writes[m.ID] = append(f.writes[m.ID], value)
	return nil
}

func (f *fakeBackend) value(id monitor.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[id]
}

func noSleep(context.Context, time.Duration) error { return nil }

var dp1 = monitor.Monitor{ID: "DP-1", DDCDisplay: 1}

func TestDimThenRestoreReturnsOriginal(t *testing.T) {
	backend := newFakeBackend(map[monitor.ID]int{"DP-1": 80})
	c := hardware.NewController(backend, logger.Get(), hardware.WithSleep(noSleep))

	require.NoError(t, c.Dim(context.Background(), dp1, 30))
	assert.Equal(t, 56, backend.value("DP-1"))
	assert.True(t, c.Dimmed("DP-1"))

	require.NoError(t, c.Restore(context.Background(), dp1))
	assert.Equal(t, 80, backend.value("DP-1"))
	assert.False(t, c.Dimmed("DP-1"))
}

func TestDimFadesInSteps(t *testing.T) {
	backend := newFakeBackend(map[monitor.ID]int{"DP-1": 100})
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	c := hardware.NewController(backend, logger.Get(),
		hardware.WithSleep(sleep),
		hardware.WithFade(500*time.Millisecond, 10))

	require.NoError(t, c.Dim(context.Background(), dp1, 50))

	writes := backend.writes["DP-1"]
	require.Len(t, writes, 10)
	assert.Equal(t, 95, writes[0])
	assert.Equal(t, 50, writes[9])
	assert.Len(t, slept, 9)
	assert.Equal(t, 50*time.Millisecond, slept[0])
}

func TestRedimRefreshesLevelOnly(t *testing.T) {
	backend := newFakeBackend(map[monitor.ID]int{"DP-1": 100})
	c := hardware.NewController(backend, logger.Get(), hardware.WithSleep(noSleep), hardware.WithFade(0, 1))

	require.NoError(t, c.Dim(context.Background(), dp1, 30))
	assert.Equal(t, 70, backend.value("DP-1"))

	require.NoError(t, c.Dim(context.Background(), dp1, 60))
	assert.Equal(t, 40, backend.value("DP-1"), "level is relative to the original, not the dimmed value")

	require.NoError(t, c.Restore(context.Background(), dp1))
	assert.Equal(t, 100, backend.value("DP-1"))
}

func TestRestoreWithoutSessionIsNoop(t *testing.T) {
	backend := newFakeBackend(map[monitor.ID]int{"DP-1": 42})
	c := hardware.NewController(backend, logger.Get(), hardware.WithSleep(noSleep))

	require.NoError(t, c.Restore(context.Background(), dp1))
	assert.Empty(t, backend.writes["DP-1"])
}

func TestRestoreIsImmediate(t *testing.T) {
	backend := newFakeBackend(map[monitor.ID]int{"DP-1": 100})
	c := hardware.NewController(backend, logger.Get(), hardware.WithSleep(noSleep))

	require.NoError(t, c.Dim(context.Background(), dp1, 30))
	before := len(backend.writes["DP-1"])
	require.NoError(t, c.Restore(context.Background(), dp1))
	assert.Len(t, backend.writes["DP-1"], before+1)
}

func TestRestoreAll(t *testing.T) {
	backend := newFakeBackend(map[monitor.ID]int{"DP-1": 100, "HDMI-1": 60})
	c := hardware.NewController(backend, logger.Get(), hardware.WithSleep(noSleep))
	hdmi := monitor.Monitor{ID: "HDMI-1", DDCDisplay: 2}

	require.NoError(t, c.Dim(context.Background(), dp1, 30))
	require.NoError(t, c.Dim(context.Background(), hdmi, 50))

	require.NoError(t, c.RestoreAll(context.Background()))
	assert.Equal(t, 100, backend.value("DP-1"))
	assert.Equal(t, 60, backend.value("HDMI-1"))
	assert.False(t, c.Dimmed("DP-1"))
	assert.False(t, c.Dimmed("HDMI-1"))
}

func TestDimPropagatesUnsupported(t *testing.T) {
	backend := newFakeBackend(map[monitor.ID]int{})
	backend.readErr = errors.New().Wrap(errors.ErrUnsupportedDevice, fmt.Errorf("no ddc"))
	c := hardware.NewController(backend, logger.Get(), hardware.WithSleep(noSleep))

	err := c.Dim(context.Background(), dp1, 30)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrUnsupportedDevice))
	assert.False(t, c.Dimmed("DP-1"))
}

func TestFailedRestoreKeepsSession(t *testing.T) {
	backend := newFakeBackend(map[monitor.ID]int{"DP-1": 90})
	c := hardware.NewController(backend, logger.Get(), hardware.WithSleep(noSleep))
	require.NoError(t, c.Dim(context.Background(), dp1, 30))

	backend.writeErr = fmt.Errorf("bus busy")
	require.Error(t, c.Restore(context.Background(), dp1))
	assert.True(t, c.Dimmed("DP-1"))

	backend.writeErr = nil
	require.NoError(t, c.Restore(context.Background(), dp1))
	assert.Equal(t, 90, backend.value("DP-1"))
}

func TestDimRejectsLevelOutOfRange(t *testing.T) {
	c := hardware.NewController(newFakeBackend(nil), logger.Get())
	err := c.Dim(context.Background(), dp1, 101)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestTarget(t *testing.T) {
	assert.Equal(t, 70, hardware.Target(100, 30))
	assert.Equal(t, 56, hardware.Target(80, 30))
	assert.Equal(t, 80, hardware.Target(80, 0))
	assert.Equal(t, 0, hardware.Target(80, 100))
}

// ddcBus addresses displays by DDC number only, like ddcutil does.
type ddcBus struct {
	mu     sync.Mutex
	values map[int]int
}

func (b *ddcBus) Brightness(_ context.Context, m monitor.Monitor) (hardware.Brightness, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return hardware.Brightness{Current: b.values[m.DDCDisplay], Max: 100}, nil
}

func (b *ddcBus) SetBrightness(_ context.Context, m monitor.Monitor, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[m.DDCDisplay] = value
	return nil
}

func (b *ddcBus) snapshot() map[int]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int]int, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

func TestSessionKeepsDimmedDisplayAfterRenumbering(t *testing.T) {
	bus := &ddcBus{values: map[int]int{1: 80, 2: 40}}
	c := hardware.NewController(bus, logger.Get(), hardware.WithSleep(noSleep), hardware.WithFade(0, 1))

	require.NoError(t, c.Dim(context.Background(), dp1, 30))
	assert.Equal(t, map[int]int{1: 56, 2: 40}, bus.snapshot())

	renumbered := dp1
	renumbered.DDCDisplay = 2

	require.NoError(t, c.Dim(context.Background(), renumbered, 50))
	assert.Equal(t, map[int]int{1: 40, 2: 40}, bus.snapshot())

	require.NoError(t, c.Restore(context.Background(), renumbered))
	assert.Equal(t, map[int]int{1: 80, 2: 40}, bus.snapshot())

	require.NoError(t, c.Dim(context.Background(), renumbered, 50))
	assert.Equal(t, map[int]int{1: 80, 2: 20}, bus.snapshot(), "a new session uses the current number")
}

func TestRestoreAllUsesDimmedDisplay(t *testing.T) {
	bus := &ddcBus{values: map[int]int{1: 70, 3: 10}}
	c := hardware.NewController(bus, logger.Get(), hardware.WithSleep(noSleep), hardware.WithFade(0, 1))

	require.NoError(t, c.Dim(context.Background(), dp1, 50))
	require.NoError(t, c.RestoreAll(context.Background()))
	assert.Equal(t, map[int]int{1: 70, 3: 10}, bus.snapshot())
}

func TestRestoreAllLogsCodedFailure(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.InfoLevel, true)
	defer logger.InitWithWriter(&bytes.Buffer{}, logger.InfoLevel, true)

	backend := newFakeBackend(map[monitor.ID]int{"DP-1": 90})
	c := hardware.NewController(backend, logger.Get(), hardware.WithSleep(noSleep))
	require.NoError(t, c.Dim(context.Background(), dp1, 30))

	backend.writeErr = fmt.Errorf("bus busy")
	require.Error(t, c.RestoreAll(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Failed to restore brightness")
	assert.Contains(t, out, "operation_failed")
	assert.Contains(t, out, "bus busy")
}
