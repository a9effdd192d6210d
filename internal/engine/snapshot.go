package engine

import (
	"time"

	"codeberg.org/mutker/monitornap/internal/monitor"
)

// MonitorSnapshot is the published state of one monitor.
type MonitorSnapshot struct {
	Monitor             monitor.Monitor  `json:"monitor"`
	Phase               Phase            `json:"phase"`
	Settings            monitor.Settings `json:"settings"`
	LastActivity        time.Time        `json:"last_activity"`
	InactivityLimit     time.Duration    `json:"inactivity_limit"`
	HardwareApplied     bool             `json:"hardware_applied"`
	OverlayApplied      bool             `json:"overlay_applied"`
	HardwareUnsupported bool             `json:"hardware_unsupported"`
	SessionID           string           `json:"session_id,omitempty"`
}

// Snapshot is a deep copy of the engine state at the end of a tick.
type Snapshot struct {
	Time        time.Time              `json:"time"`
	Global      monitor.GlobalSettings `json:"global"`
	PausedUntil time.Time              `json:"paused_until,omitempty"`
	Monitors    []MonitorSnapshot      `json:"monitors"`
}

// Monitor returns the snapshot of id.
func (s Snapshot) Monitor(id monitor.ID) (MonitorSnapshot, bool) {
	for _, m := range s.Monitors {
		if m.Monitor.ID == id {
			return m, true
		}
	}
	return MonitorSnapshot{}, false
}

// Paused reports whether a pause is active at the snapshot time.
func (s Snapshot) Paused() bool {
	return !s.PausedUntil.IsZero() && s.Time.Before(s.PausedUntil)
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Monitors = make([]MonitorSnapshot, len(s.Monitors))
	copy(out.Monitors, s.Monitors)
	return out
}

// Transition is one phase change of one monitor.
type Transition struct {
	Time      time.Time  `json:"time"`
	MonitorID monitor.ID `json:"monitor_id"`
	From      Phase      `json:"from"`
	To        Phase      `json:"to"`
	Reason    string     `json:"reason"`
	// SessionID identifies the dim session a transition into or out of
	// DIMMED belongs to.
	SessionID string `json:"session_id,omitempty"`
}

// GlobalSettingsUpdate changes the fields that are set.
type GlobalSettingsUpdate struct {
	InactivityLimit *time.Duration `json:"inactivity_limit,omitempty"`
	Hotkey          *string        `json:"hotkey,omitempty"`
	FadeTime        *time.Duration `json:"fade_time,omitempty"`
	FadeSteps       *int           `json:"fade_steps,omitempty"`
}

func (u GlobalSettingsUpdate) apply(g monitor.GlobalSettings) monitor.GlobalSettings {
	if u.InactivityLimit != nil {
		g.InactivityLimit = *u.InactivityLimit
	}
	if u.Hotkey != nil {
		g.Hotkey = *u.Hotkey
	}
	if u.FadeTime != nil {
		g.FadeTime = *u.FadeTime
	}
	if u.FadeSteps != nil {
		g.FadeSteps = *u.FadeSteps
	}
	return g
}
