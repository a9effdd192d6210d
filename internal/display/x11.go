package display

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/xconn"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
)

const changeDebounce = 200 * time.Millisecond

type x11Registry struct {
	conn    *xconn.Conn
	log     logger.Logger
	changes chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewX11Registry enumerates monitors through the RandR extension and listens
// for screen-change notifications on the root window.
func NewX11Registry(conn *xconn.Conn, log logger.Logger) (Registry, error) {
	errFactory := errors.New()

	if err := randr.Init(conn.X); err != nil {
		return nil, errFactory.Wrap(ErrRandRUnavailable, err)
	}

	r := &x11Registry{
		conn:    conn,
		log:     log,
		changes: make(chan struct{}, 1),
	}

	mask := uint16(randr.NotifyMaskScreenChange | randr.NotifyMaskCrtcChange | randr.NotifyMaskOutputChange)
	if err := randr.SelectInputChecked(conn.X, conn.Root, mask).Check(); err != nil {
		return nil, errFactory.Wrap(ErrRandRUnavailable, err)
	}
	conn.Subscribe(r.handleEvent)

	return r, nil
}

func (r *x11Registry) Changes() <-chan struct{} {
	return r.changes
}

func (r *x11Registry) handleEvent(ev xgb.Event) {
	switch ev.(type) {
	case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
	default:
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(changeDebounce, func() {
		select {
		case r.changes <- struct{}{}:
		default:
		}
	})
}

func (r *x11Registry) Enumerate(ctx context.Context) ([]monitor.Monitor, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrTimeout, err)
	}

	res, err := randr.GetScreenResourcesCurrent(r.conn.X, r.conn.Root).Reply()
	if err != nil {
		return nil, errFactory.Wrap(ErrResourcesFailed, err)
	}

	primary := randr.Output(0)
	if reply, err := randr.GetOutputPrimary(r.conn.X, r.conn.Root).Reply(); err == nil {
		primary = reply.Output
	}

	monitors := make([]monitor.Monitor, 0, len(res.Outputs))
	for _, output := range res.Outputs {
		info, err := randr.GetOutputInfo(r.conn.X, output, res.ConfigTimestamp).Reply()
		if err != nil {
			return nil, errFactory.Wrap(ErrOutputInfoFailed, err)
		}
		if info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}

		crtc, err := randr.GetCrtcInfo(r.conn.X, info.Crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			return nil, errFactory.Wrap(ErrOutputInfoFailed, err)
		}
		if crtc.Width == 0 || crtc.Height == 0 {
			continue
		}

		name := string(info.Name)
		monitors = append(monitors, monitor.Monitor{
			ID:   monitor.ID(name),
			Name: name,
			Geometry: monitor.Rect{
				X:      int(crtc.X),
				Y:      int(crtc.Y),
				Width:  int(crtc.Width),
				Height: int(crtc.Height),
			},
			Primary: output == primary,
		})
	}

	if len(monitors) == 0 {
		monitors = append(monitors, monitor.Monitor{
			ID:       "screen-0",
			Name:     "screen-0",
			Geometry: rootSize(r.conn.Screen),
			Primary:  true,
		})
	}

	monitors = finalize(monitors)
	r.log.Debug().Int("count", len(monitors)).Msg("Enumerated monitors")

	return monitors, nil
}

// rootSize is used when RandR reports no active CRTC, e.g. under Xvfb.
func rootSize(screen *xproto.ScreenInfo) monitor.Rect {
	return monitor.Rect{Width: int(screen.WidthInPixels), Height: int(screen.HeightInPixels)}
}
