package activity

import (
	"encoding/binary"

	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/xconn"
	"github.com/jezek/xgb/xproto"
)

const motifDecorationsFlag = 1 << 1

type x11Backend struct {
	conn *xconn.Conn
}

// NewX11Backend samples the pointer and the EWMH active window.
func NewX11Backend(conn *xconn.Conn) Backend {
	return &x11Backend{conn: conn}
}

func (b *x11Backend) PointerPosition() (monitor.Point, error) {
	reply, err := xproto.QueryPointer(b.conn.X, b.conn.Root).Reply()
	if err != nil {
		return monitor.Point{}, err
	}

	return monitor.Point{X: int(reply.RootX), Y: int(reply.RootY)}, nil
}

func (b *x11Backend) ForegroundWindow() (*Window, error) {
	data, err := b.conn.Property(b.conn.Root, "_NET_ACTIVE_WINDOW", xproto.AtomWindow, 1)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, nil
	}

	win := xproto.Window(binary.LittleEndian.Uint32(data))
	if win == 0 || win == b.conn.Root {
		return nil, nil
	}

	bounds, err := b.rootBounds(win)
	if err != nil {
		return nil, err
	}

	return &Window{
		Bounds:     bounds,
		Decorated:  b.decorated(win),
		Fullscreen: b.fullscreen(win),
	}, nil
}

// rootBounds returns the window rectangle translated to root coordinates.
func (b *x11Backend) rootBounds(win xproto.Window) (monitor.Rect, error) {
	geom, err := xproto.GetGeometry(b.conn.X, xproto.Drawable(win)).Reply()
	if err != nil {
		return monitor.Rect{}, err
	}

	pos, err := xproto.TranslateCoordinates(b.conn.X, win, b.conn.Root, 0, 0).Reply()
	if err != nil {
		return monitor.Rect{}, err
	}

	return monitor.Rect{
		X:      int(pos.DstX),
		Y:      int(pos.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

func (b *x11Backend) fullscreen(win xproto.Window) bool {
	fs, err := b.conn.Atom("_NET_WM_STATE_FULLSCREEN")
	if err != nil {
		return false
	}

	data, err := b.conn.Property(win, "_NET_WM_STATE", xproto.AtomAtom, 32)
	if err != nil {
		return false
	}
	for _, atom := range xconn.Uint32s(data) {
		if xproto.Atom(atom) == fs {
			return true
		}
	}

	return false
}

// decorated reports whether the window manager draws chrome around win:
// non-zero _NET_FRAME_EXTENTS, unless Motif hints switch decorations off.
func (b *x11Backend) decorated(win xproto.Window) bool {
	if hints, err := b.conn.Property(win, "_MOTIF_WM_HINTS", xproto.AtomAny, 5); err == nil {
		values := xconn.Uint32s(hints)
		if len(values) >= 3 && values[0]&motifDecorationsFlag != 0 && values[2] == 0 {
			return false
		}
	}

	extents, err := b.conn.Property(win, "_NET_FRAME_EXTENTS", xproto.AtomCardinal, 4)
	if err != nil {
		return false
	}
	for _, v := range xconn.Uint32s(extents) {
		if v != 0 {
			return true
		}
	}

	return false
}
