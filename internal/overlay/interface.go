// Package overlay draws click-through, always-on-top tinted windows over
// monitors.
package overlay

import (
	"context"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

// Overlay dims monitors in software.
type Overlay interface {
	// Show covers m with color at opacity percent, fading in. Calling Show on
	// a visible overlay updates geometry, color and opacity.
	Show(ctx context.Context, m monitor.Monitor, opacity int, color monitor.Color) error
	// Hide removes the overlay from m. It never fails.
	Hide(m monitor.Monitor)
	// Visible reports whether m currently has a dimming overlay.
	Visible(id monitor.ID) bool
	// Flash briefly highlights m with a separate window.
	Flash(ctx context.Context, m monitor.Monitor, d time.Duration) error
	SetFade(duration time.Duration, steps int)
	Close()
}

// Backend creates native windows.
type Backend interface {
	Create(geometry monitor.Rect, color monitor.Color, opacity float64) (Window, error)
}

// Window is one native overlay window.
type Window interface {
	SetOpacity(opacity float64) error
	SetColor(color monitor.Color) error
	Move(geometry monitor.Rect) error
	Raise() error
	Destroy()
}

// Unavailable is a Backend whose every Create fails with Err. It stands in
// when the display server cannot host overlays.
type Unavailable struct {
	Err error
}

func (u Unavailable) Create(monitor.Rect, monitor.Color, float64) (Window, error) {
	return nil, errors.New().Wrap(ErrCreateWindow, u.Err)
}
