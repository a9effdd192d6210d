// Package display enumerates attached monitors and reports configuration
// changes.
package display

import (
	"context"

	"codeberg.org/mutker/monitornap/internal/monitor"
)

// Registry enumerates attached monitors.
type Registry interface {
	// Enumerate returns the connected monitors ordered left to right, then top
	// to bottom. The result is stable until the physical configuration changes.
	Enumerate(ctx context.Context) ([]monitor.Monitor, error)

	// Changes is signalled after the display configuration changed. Bursts of
	// notifications are coalesced.
	Changes() <-chan struct{}
}
