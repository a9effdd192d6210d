// Package xconn owns the single X11 connection shared by the display
// registry, activity probe, overlays and hotkey listener.
package xconn

import (
	"encoding/binary"
	"sync"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

const ErrConnectFailed = errors.ErrorCode("x11_connect_failed")

// Handler receives X events. Handlers run on the event goroutine and must not
// block.
type Handler func(ev xgb.Event)

// Conn is an X11 connection with an atom cache and an event fan-out loop.
type Conn struct {
	X      *xgb.Conn
	Setup  *xproto.SetupInfo
	Screen *xproto.ScreenInfo
	Root   xproto.Window

	mu       sync.RWMutex
	atoms    map[string]xproto.Atom
	handlers []Handler
	done     chan struct{}
	once     sync.Once
	log      logger.Logger
}

// Dial connects to the display named by $DISPLAY.
func Dial(log logger.Logger) (*Conn, error) {
	errFactory := errors.New()

	x, err := xgb.NewConn()
	if err != nil {
		return nil, errFactory.Wrap(ErrConnectFailed, err)
	}

	setup := xproto.Setup(x)
	screen := setup.DefaultScreen(x)

	c := &Conn{
		X:      x,
		Setup:  setup,
		Screen: screen,
		Root:   screen.Root,
		atoms:  make(map[string]xproto.Atom),
		done:   make(chan struct{}),
		log:    log,
	}

	go c.eventLoop()

	return c, nil
}

// Atom interns name once and caches the result.
func (c *Conn) Atom(name string) (xproto.Atom, error) {
	c.mu.RLock()
	atom, ok := c.atoms[name]
	c.mu.RUnlock()
	if ok {
		return atom, nil
	}

	reply, err := xproto.InternAtom(c.X, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.atoms[name] = reply.Atom
	c.mu.Unlock()

	return reply.Atom, nil
}

// Property reads up to length 32-bit units of a window property.
func (c *Conn) Property(window xproto.Window, name string, atomType xproto.Atom, length uint32) ([]byte, error) {
	atom, err := c.Atom(name)
	if err != nil {
		return nil, err
	}

	reply, err := xproto.GetProperty(c.X, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}

	return reply.Value, nil
}

// Uint32s decodes a format-32 property value.
func Uint32s(data []byte) []uint32 {
	out := make([]uint32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(data[i:]))
	}
	return out
}

// Subscribe registers h for every subsequent event.
func (c *Conn) Subscribe(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Conn) eventLoop() {
	defer close(c.done)

	for {
		ev, xerr := c.X.WaitForEvent()
		if ev == nil && xerr == nil {
			c.log.Debug().Msg("X connection closed")
			return
		}
		if xerr != nil {
			c.log.Debug().Str("error", xerr.Error()).Msg("Asynchronous X error")
			continue
		}

		c.mu.RLock()
		handlers := make([]Handler, len(c.handlers))
		copy(handlers, c.handlers)
		c.mu.RUnlock()

		for _, h := range handlers {
			h(ev)
		}
	}
}

// Close closes the connection and waits for the event loop to exit.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.X.Close()
		<-c.done
	})
}
