package hotkey

import (
	"sync"
	"time"
)

// DefaultHoldTimeout ends a hold whose release was never seen. It is longer
// than any usual auto-repeat delay.
const DefaultHoldTimeout = 2 * time.Second

// Debouncer turns the key events of one combination into toggles: one per
// physical press, however long the key is held.
//
// X auto-repeat reports a held key either as KeyRelease/KeyPress pairs that
// share one server timestamp, or as presses with no release in between. Both
// continue the hold. Only a release that is not immediately followed by a
// press at the same time ends it.
type Debouncer struct {
	holdTimeout time.Duration

	mu   sync.Mutex
	down bool
	last time.Time
}

func NewDebouncer(holdTimeout time.Duration) *Debouncer {
	return &Debouncer{holdTimeout: holdTimeout}
}

// Press records a key press at server time at and reports whether it
// should trigger.
func (d *Debouncer) Press(at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	var repeat bool
	if d.down {
		gap := at.Sub(d.last)
		repeat = gap >= 0 && gap < d.holdTimeout
	} else {
		repeat = !d.last.IsZero() && at.Equal(d.last)
	}
	d.down = true
	d.last = at

	return !repeat
}

// Release records a key release at server time at.
func (d *Debouncer) Release(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.down = false
	d.last = at
}
