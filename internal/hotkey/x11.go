package hotkey

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/xconn"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// lockMasks are the lock-key states a grab must cover so the hotkey works
// with Caps Lock or Num Lock on.
var lockMasks = []uint16{0, xproto.ModMaskLock, xproto.ModMask2, xproto.ModMaskLock | xproto.ModMask2}

// Listener grabs one key combination on the X11 root window and calls
// onPress for each debounced press.
type Listener struct {
	conn     *xconn.Conn
	logger   logger.Logger
	debounce *Debouncer
	onPress  func()

	mu      sync.Mutex
	binding Binding
	keycode xproto.Keycode
	mods    uint16
	bound   bool
}

func NewListener(conn *xconn.Conn, log logger.Logger, onPress func()) *Listener {
	l := &Listener{
		conn:     conn,
		logger:   log,
		debounce: NewDebouncer(DefaultHoldTimeout),
		onPress:  onPress,
	}
	conn.Subscribe(l.handleEvent)
	return l
}

// Rebind releases the current grab, if any, and grabs the binding parsed
// from text instead. On failure the listener is left unbound and the error
// carries hotkey_registration_failed.
func (l *Listener) Rebind(text string) error {
	errFactory := errors.New()

	binding, err := ParseBinding(text)
	if err != nil {
		return errFactory.Wrap(errors.ErrHotkeyRegistration, err)
	}

	keycode, err := l.keycodeFor(binding.Keysym)
	if err != nil {
		return errFactory.Wrap(errors.ErrHotkeyRegistration, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.ungrabLocked()

	mods := modMask(binding.Modifiers)
	for _, lock := range lockMasks {
		err := xproto.GrabKeyChecked(l.conn.X, true, l.conn.Root, mods|lock, keycode,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
		if err != nil {
			for _, undo := range lockMasks {
				xproto.UngrabKey(l.conn.X, keycode, l.conn.Root, mods|undo)
			}
			if _, ok := err.(xproto.AccessError); ok {
				err = fmt.Errorf("%s is already grabbed by another client: %w", binding, err)
			}
			return errFactory.Wrap(errors.ErrHotkeyRegistration, err)
		}
	}

	l.binding = binding
	l.keycode = keycode
	l.mods = mods
	l.bound = true

	l.logger.Info().Str("hotkey", binding.String()).Msg("Global hotkey registered")

	return nil
}

// Binding returns the active binding and whether one is grabbed.
func (l *Listener) Binding() (Binding, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.binding, l.bound
}

// Close releases the grab.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ungrabLocked()
}

func (l *Listener) ungrabLocked() {
	if !l.bound {
		return
	}
	for _, lock := range lockMasks {
		xproto.UngrabKey(l.conn.X, l.keycode, l.conn.Root, l.mods|lock)
	}
	l.bound = false
}

func (l *Listener) handleEvent(ev xgb.Event) {
	switch ev := ev.(type) {
	case xproto.KeyPressEvent:
		l.mu.Lock()
		match := l.bound && ev.Detail == l.keycode && stripLocks(ev.State) == l.mods
		l.mu.Unlock()

		if match && l.debounce.Press(serverTime(ev.Time)) {
			l.logger.Debug().Msg("Hotkey pressed")
			l.onPress()
		}
	case xproto.KeyReleaseEvent:
		// Modifiers may already be up, so only the key is compared.
		l.mu.Lock()
		match := l.bound && ev.Detail == l.keycode
		l.mu.Unlock()

		if match {
			l.debounce.Release(serverTime(ev.Time))
		}
	}
}

// serverTime maps an X timestamp, milliseconds since server start, onto a
// time.Time. Only differences and equality are meaningful.
func serverTime(ts xproto.Timestamp) time.Time {
	return time.UnixMilli(int64(ts))
}

// keycodeFor finds the first keycode whose keyboard mapping produces sym.
func (l *Listener) keycodeFor(sym uint32) (xproto.Keycode, error) {
	minCode, maxCode := l.conn.Setup.MinKeycode, l.conn.Setup.MaxKeycode
	count := byte(maxCode - minCode + 1)

	reply, err := xproto.GetKeyboardMapping(l.conn.X, minCode, count).Reply()
	if err != nil {
		return 0, err
	}

	code, ok := findKeycode(reply.Keysyms, int(reply.KeysymsPerKeycode), minCode, sym)
	if !ok {
		return 0, errors.New().WithData(ErrNoKeycode, fmt.Sprintf("keysym 0x%x", sym))
	}

	return code, nil
}

func findKeycode(keysyms []xproto.Keysym, perKeycode int, minCode xproto.Keycode, sym uint32) (xproto.Keycode, bool) {
	if perKeycode < 1 {
		return 0, false
	}
	for i, ks := range keysyms {
		if uint32(ks) == sym {
			return minCode + xproto.Keycode(i/perKeycode), true
		}
	}
	return 0, false
}

func modMask(m Modifier) uint16 {
	var mask uint16
	if m&ModShift != 0 {
		mask |= xproto.ModMaskShift
	}
	if m&ModCtrl != 0 {
		mask |= xproto.ModMaskControl
	}
	if m&ModAlt != 0 {
		mask |= xproto.ModMask1
	}
	if m&ModSuper != 0 {
		mask |= xproto.ModMask4
	}
	return mask
}

// stripLocks keeps the modifier bits of a key event state without the lock
// keys and pointer buttons.
func stripLocks(state uint16) uint16 {
	return state & 0xff &^ (xproto.ModMaskLock | xproto.ModMask2)
}
