package engine

import (
	"context"
	"time"

	"codeberg.org/mutker/monitornap/internal/activity"
	"codeberg.org/mutker/monitornap/internal/display"
	"codeberg.org/mutker/monitornap/internal/hardware"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/notify"
	"codeberg.org/mutker/monitornap/internal/overlay"
)

// Deps are the collaborators the engine drives.
type Deps struct {
	Registry display.Registry
	Probe    activity.Prober
	Dimmer   hardware.Dimmer
	Overlay  overlay.Overlay
	Notifier notify.Notifier
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Recorder receives every phase transition.
type Recorder interface {
	RecordTransition(t Transition)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(Transition) {}

// HotkeyBinder grabs the awake-mode toggle hotkey.
type HotkeyBinder interface {
	Rebind(binding string) error
}

// Controller is the command surface offered to the CLI, control socket and
// hotkey listener.
type Controller interface {
	NapNow()
	ResumeNow()
	PauseFor(minutes int) error
	CancelPause()
	ToggleAwakeMode()
	SetAwakeMode(enabled bool)
	Identify(id monitor.ID) error
	UpdateGlobalSettings(update GlobalSettingsUpdate) error
	UpdateMonitorSettings(id monitor.ID, settings monitor.Settings) error
	Snapshot() Snapshot
	Sync(ctx context.Context) error
}

var _ Controller = (*Engine)(nil)
