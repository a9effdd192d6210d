// Package notify delivers user-visible notifications about dimming failures.
package notify

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

// Notification is one user-facing message. Kind is the error code that
// caused it.
type Notification struct {
	Kind      errors.ErrorCode `json:"kind"`
	MonitorID monitor.ID       `json:"monitor_id,omitempty"`
	Message   string           `json:"message"`
	Time      time.Time        `json:"time"`
}

func (n Notification) String() string {
	if n.MonitorID == "" {
		return n.Message
	}
	return fmt.Sprintf("%s: %s", n.MonitorID, n.Message)
}

// Notifier delivers notifications. Implementations must not block the
// caller for long and must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// Log writes notifications to the logger as warnings.
type Log struct {
	Logger logger.Logger
}

func (l Log) Notify(n Notification) {
	l.Logger.Warn().
		Str("kind", string(n.Kind)).
		Str("monitor", string(n.MonitorID)).
		Msg(n.Message)
}

// Recorder keeps the most recent notifications in a ring.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	next  int
	full  bool
}

func NewRecorder(size int) *Recorder {
	if size < 1 {
		size = 1
	}
	return &Recorder{items: make([]Notification, size)}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.next] = n
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns the recorded notifications, oldest first.
func (r *Recorder) Recent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Notification, r.next)
		copy(out, r.items[:r.next])
		return out
	}

	out := make([]Notification, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}
