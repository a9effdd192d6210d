// Package hardware changes monitor brightness through DDC/CI or the kernel
// backlight interface and remembers what it has to put back.
package hardware

import (
	"context"
	"time"

	"codeberg.org/mutker/monitornap/internal/monitor"
)

// Dimmer reduces and restores monitor brightness.
type Dimmer interface {
	// Dim reduces brightness by level percent of the brightness the monitor
	// had when the dim session started.
	Dim(ctx context.Context, m monitor.Monitor, level int) error
	// Restore writes the remembered brightness back and ends the session.
	// Without a session it does nothing.
	Restore(ctx context.Context, m monitor.Monitor) error
	// RestoreAll restores every monitor with an open session.
	RestoreAll(ctx context.Context) error
	// SetFade configures the dimming animation.
	SetFade(duration time.Duration, steps int)
}

// Backend reads and writes raw brightness values of one kind of device.
type Backend interface {
	Brightness(ctx context.Context, m monitor.Monitor) (Brightness, error)
	SetBrightness(ctx context.Context, m monitor.Monitor, value int) error
}

// Brightness is a raw device reading.
type Brightness struct {
	Current int
	Max     int
}
