// Package activity decides whether a monitor is in use right now.
package activity

import (
	"context"

	"codeberg.org/mutker/monitornap/internal/monitor"
)

// Window describes the foreground window as seen by the window system.
type Window struct {
	Bounds monitor.Rect
	// Decorated is true when the window has a border or title bar.
	Decorated bool
	// Fullscreen is the window manager's own fullscreen flag.
	Fullscreen bool
}

// Backend is the platform capability the probe samples.
type Backend interface {
	PointerPosition() (monitor.Point, error)
	// ForegroundWindow returns nil when there is no foreground window.
	ForegroundWindow() (*Window, error)
}

// Prober reports whether a monitor is in use.
type Prober interface {
	// Sample returns true when m is in use. On backend failure it returns true
	// together with a probe_failure error.
	Sample(ctx context.Context, m monitor.Monitor) (bool, error)
}
