package activity

import (
	"context"
	"fmt"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

// fullscreenCoverage is the share of a monitor a window flagged fullscreen by
// the window manager must cover to count as fullscreen on it.
const fullscreenCoverage = 0.95

// Probe implements Prober over a Backend. It keeps no state between samples.
type Probe struct {
	backend Backend
}

func NewProbe(backend Backend) *Probe {
	return &Probe{backend: backend}
}

func (p *Probe) Sample(ctx context.Context, m monitor.Monitor) (bool, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return true, errFactory.Wrap(errors.ErrProbeFailure, err)
	}

	pos, err := p.backend.PointerPosition()
	if err != nil {
		return true, errFactory.Wrap(errors.ErrProbeFailure, fmt.Errorf("pointer position: %w", err))
	}
	if m.Geometry.Contains(pos) {
		return true, nil
	}

	win, err := p.backend.ForegroundWindow()
	if err != nil {
		return true, errFactory.Wrap(errors.ErrProbeFailure, fmt.Errorf("foreground window: %w", err))
	}

	return win != nil && IsFullscreenOn(*win, m.Geometry), nil
}

// IsFullscreenOn reports whether win occupies the monitor at geometry as a
// fullscreen application: either it covers the monitor without chrome, or the
// window manager flags it fullscreen and it covers nearly all of the monitor.
func IsFullscreenOn(win Window, geometry monitor.Rect) bool {
	if geometry.Empty() {
		return false
	}
	if !win.Decorated && win.Bounds.Covers(geometry) {
		return true
	}
	if !win.Fullscreen {
		return false
	}

	overlap := win.Bounds.Intersect(geometry).Area()
	return float64(overlap)/float64(geometry.Area()) >= fullscreenCoverage
}
