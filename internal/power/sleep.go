// Package power watches systemd-logind for suspend and resume.
package power

import (
	"context"
	"os"

	"codeberg.org/mutker/monitornap/internal/logger"
	"github.com/godbus/dbus/v5"
)

const prepareForSleep = "org.freedesktop.login1.Manager.PrepareForSleep"

// SleepWatcher calls OnWake after the system resumes from suspend.
type SleepWatcher struct {
	logger  logger.Logger
	onSleep func()
	onWake  func()
}

func NewSleepWatcher(log logger.Logger, onSleep, onWake func()) *SleepWatcher {
	return &SleepWatcher{logger: log, onSleep: onSleep, onWake: onWake}
}

// Run listens on the system bus until ctx is cancelled. Without a system bus
// it returns immediately.
func (w *SleepWatcher) Run(ctx context.Context) {
	conn, err := dbus.SystemBus()
	if err != nil {
		if os.Getenv("DBUS_SYSTEM_BUS_ADDRESS") == "" {
			w.logger.Debug().Err(err).Msg("System bus unavailable, sleep watcher disabled")
		} else {
			w.logger.Warn().Err(err).Msg("Failed to connect to system bus")
		}
		return
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to subscribe to PrepareForSleep")
		return
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	w.logger.Debug().Msg("Sleep watcher started")

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == nil {
				return
			}
			w.handle(sig)
		}
	}
}

func (w *SleepWatcher) handle(sig *dbus.Signal) {
	entering, ok := parseSleepSignal(sig)
	if !ok {
		return
	}
	if entering {
		w.logger.Info().Msg("System suspending")
		if w.onSleep != nil {
			w.onSleep()
		}
		return
	}
	w.logger.Info().Msg("System resumed")
	if w.onWake != nil {
		w.onWake()
	}
}

// parseSleepSignal reports whether sig announces suspend (true) or resume
// (false).
func parseSleepSignal(sig *dbus.Signal) (entering, ok bool) {
	if sig.Name != prepareForSleep || len(sig.Body) < 1 {
		return false, false
	}
	entering, ok = sig.Body[0].(bool)
	return entering, ok
}
