package overlay

import (
	"encoding/binary"
	"math"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/xconn"
	"github.com/jezek/xgb/shape"
	"github.com/jezek/xgb/xproto"
)

const opacityAtom = "_NET_WM_WINDOW_OPACITY"

type x11Backend struct {
	conn *xconn.Conn
}

// NewX11Backend creates override-redirect windows with an empty input shape,
// so pointer and keyboard events pass through to the windows below.
func NewX11Backend(conn *xconn.Conn) (Backend, error) {
	if err := shape.Init(conn.X); err != nil {
		return nil, errors.New().Wrap(ErrShapeUnavailable, err)
	}
	return &x11Backend{conn: conn}, nil
}

func (b *x11Backend) Create(geometry monitor.Rect, color monitor.Color, opacity float64) (Window, error) {
	errFactory := errors.New()
	c := b.conn.X

	wid, err := xproto.NewWindowId(c)
	if err != nil {
		return nil, errFactory.Wrap(ErrCreateWindow, err)
	}

	screen := b.conn.Screen
	err = xproto.CreateWindowChecked(c, screen.RootDepth, wid, b.conn.Root,
		int16(geometry.X), int16(geometry.Y), uint16(geometry.Width), uint16(geometry.Height), 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect,
		[]uint32{color.Pixel(), 1}).Check()
	if err != nil {
		return nil, errFactory.Wrap(ErrCreateWindow, err)
	}

	w := &x11Window{conn: b.conn, id: wid}

	err = shape.RectanglesChecked(c, shape.SoSet, shape.SkInput, xproto.ClipOrderingUnsorted, wid, 0, 0, nil).Check()
	if err != nil {
		w.Destroy()
		return nil, errFactory.Wrap(ErrShapeUnavailable, err)
	}

	if err := w.SetOpacity(opacity); err != nil {
		w.Destroy()
		return nil, err
	}

	if err := xproto.MapWindowChecked(c, wid).Check(); err != nil {
		w.Destroy()
		return nil, errFactory.Wrap(ErrCreateWindow, err)
	}

	return w, w.Raise()
}

type x11Window struct {
	conn *xconn.Conn
	id   xproto.Window
}

func (w *x11Window) SetOpacity(opacity float64) error {
	atom, err := w.conn.Atom(opacityAtom)
	if err != nil {
		return err
	}

	opacity = math.Max(0, math.Min(1, opacity))
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(opacity*math.MaxUint32))

	return xproto.ChangePropertyChecked(w.conn.X, xproto.PropModeReplace, w.id,
		atom, xproto.AtomCardinal, 32, 1, buf).Check()
}

func (w *x11Window) SetColor(color monitor.Color) error {
	err := xproto.ChangeWindowAttributesChecked(w.conn.X, w.id, xproto.CwBackPixel, []uint32{color.Pixel()}).Check()
	if err != nil {
		return err
	}
	return xproto.ClearAreaChecked(w.conn.X, false, w.id, 0, 0, 0, 0).Check()
}

func (w *x11Window) Move(geometry monitor.Rect) error {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	values := []uint32{
		uint32(int32(geometry.X)),
		uint32(int32(geometry.Y)),
		uint32(geometry.Width),
		uint32(geometry.Height),
	}
	return xproto.ConfigureWindowChecked(w.conn.X, w.id, mask, values).Check()
}

func (w *x11Window) Raise() error {
	return xproto.ConfigureWindowChecked(w.conn.X, w.id,
		xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()
}

func (w *x11Window) Destroy() {
	xproto.DestroyWindow(w.conn.X, w.id)
}
