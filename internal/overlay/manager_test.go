package overlay_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/overlay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	mu        sync.Mutex
	geometry  monitor.Rect
	color     monitor.Color
	opacities []float64
	raised    int
	destroyed bool
}

func (w *fakeWindow) SetOpacity(o float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opacities = append(w.opacities, o)
	return nil
}

func (w *fakeWindow) SetColor(c monitor.Color) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.color = c
	return nil
}

func (w *fakeWindow) Move(g monitor.Rect) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.geometry = g
	return nil
}

func (w *fakeWindow) Raise() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.raised++
	return nil
}

func (w *fakeWindow) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyed = true
}

func (w *fakeWindow) lastOpacity() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.opacities) == 0 {
		return 0
	}
	return w.opacities[len(w.opacities)-1]
}

type fakeBackend struct {
	mu      sync.Mutex
	windows []*fakeWindow
	err     error
}

func (b *fakeBackend) Create(g monitor.Rect, c monitor.Color, o float64) (overlay.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	w := &fakeWindow{geometry: g, color: c, opacities: []float64{o}}
	b.windows = append(b.windows, w)
	return w, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

var dp1 = monitor.Monitor{ID: "DP-1", Geometry: monitor.Rect{Width: 1920, Height: 1080}}

func newManager(backend overlay.Backend) *overlay.Manager {
	return overlay.NewManager(backend, logger.Get(), 0,
		overlay.WithSleep(noSleep), overlay.WithFade(500*time.Millisecond, 10))
}

func TestShowFadesIn(t *testing.T) {
	backend := &fakeBackend{}
	m := newManager(backend)
	defer m.Close()

	require.NoError(t, m.Show(context.Background(), dp1, 50, monitor.Black))
	require.Len(t, backend.windows, 1)

	w := backend.windows[0]
	assert.Len(t, w.opacities, 11, "initial transparent window plus ten fade steps")
	assert.InDelta(t, 0.05, w.opacities[1], 1e-9)
	assert.InDelta(t, 0.5, w.lastOpacity(), 1e-9)
	assert.True(t, m.Visible("DP-1"))
}

func TestShowUpdatesExistingOverlay(t *testing.T) {
	backend := &fakeBackend{}
	m := newManager(backend)
	defer m.Close()

	require.NoError(t, m.Show(context.Background(), dp1, 50, monitor.Black))

	moved := dp1
	moved.Geometry = monitor.Rect{X: 1920, Width: 2560, Height: 1440}
	red := monitor.MustParseColor("#ff0000")
	require.NoError(t, m.Show(context.Background(), moved, 80, red))

	require.Len(t, backend.windows, 1)
	w := backend.windows[0]
	assert.Equal(t, moved.Geometry, w.geometry)
	assert.Equal(t, red, w.color)
	assert.InDelta(t, 0.8, w.lastOpacity(), 1e-9)
}

func TestHide(t *testing.T) {
	backend := &fakeBackend{}
	m := newManager(backend)
	defer m.Close()

	m.Hide(dp1)

	require.NoError(t, m.Show(context.Background(), dp1, 50, monitor.Black))
	m.Hide(dp1)
	assert.True(t, backend.windows[0].destroyed)
	assert.False(t, m.Visible("DP-1"))
}

func TestShowFailure(t *testing.T) {
	m := newManager(&fakeBackend{err: fmt.Errorf("no compositor")})
	defer m.Close()

	err := m.Show(context.Background(), dp1, 50, monitor.Black)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrOverlayFailure))
	assert.False(t, m.Visible("DP-1"))
}

func TestUnavailableBackend(t *testing.T) {
	m := newManager(overlay.Unavailable{Err: fmt.Errorf("no SHAPE extension")})
	defer m.Close()

	err := m.Show(context.Background(), dp1, 50, monitor.Black)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrOverlayFailure))
	assert.Contains(t, err.Error(), "no SHAPE extension")
}

func TestShowRejectsBadOpacity(t *testing.T) {
	m := newManager(&fakeBackend{})
	defer m.Close()

	err := m.Show(context.Background(), dp1, 120, monitor.Black)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestFlashUsesSeparateWindow(t *testing.T) {
	backend := &fakeBackend{}
	m := newManager(backend)
	defer m.Close()

	require.NoError(t, m.Show(context.Background(), dp1, 50, monitor.Black))
	require.NoError(t, m.Flash(context.Background(), dp1, time.Second))

	require.Len(t, backend.windows, 2)
	assert.False(t, backend.windows[0].destroyed, "dimming overlay untouched")
	assert.True(t, backend.windows[1].destroyed, "flash window removed afterwards")
	assert.True(t, m.Visible("DP-1"))
}

func TestKeepOnTop(t *testing.T) {
	backend := &fakeBackend{}
	m := overlay.NewManager(backend, logger.Get(), 5*time.Millisecond, overlay.WithSleep(noSleep))

	require.NoError(t, m.Show(context.Background(), dp1, 50, monitor.Black))
	w := backend.windows[0]

	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.raised > 2
	}, time.Second, 5*time.Millisecond)

	m.Close()
	assert.True(t, w.destroyed)
}
