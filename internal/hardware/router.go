package hardware

import (
	"context"

	"codeberg.org/mutker/monitornap/internal/monitor"
)

// Router sends internal panels to the backlight backend and everything else
// to DDC/CI.
type Router struct {
	Internal Backend
	External Backend
}

func (r Router) pick(m monitor.Monitor) Backend {
	if m.Internal {
		return r.Internal
	}
	return r.External
}

func (r Router) Brightness(ctx context.Context, m monitor.Monitor) (Brightness, error) {
	return r.pick(m).Brightness(ctx, m)
}

func (r Router) SetBrightness(ctx context.Context, m monitor.Monitor, value int) error {
	return r.pick(m).SetBrightness(ctx, m, value)
}
