package engine

import (
	"time"

	"codeberg.org/mutker/monitornap/internal/monitor"
)

// monitorState is owned by the tick goroutine. During effect application
// each state is touched only by the goroutine applying its effects.
type monitorState struct {
	monitor      monitor.Monitor
	settings     monitor.Settings
	phase        Phase
	lastActivity time.Time
	sessionID    string

	hwApplied bool
	hwLevel   int

	overlayApplied  bool
	overlayOpacity  int
	overlayColor    monitor.Color
	overlayGeometry monitor.Rect

	// hwUnsupported latches hardware dimming off for the lifetime of the
	// state. hwFailed and overlayFailed last for one dim session.
	hwUnsupported bool
	hwFailed      bool
	overlayFailed bool

	probeFailing    bool
	hwNotified      bool
	overlayNotified bool
}

// effects is the set of dimming effects a monitor should have.
type effects struct {
	hardware bool
	level    int

	overlay  bool
	opacity  int
	color    monitor.Color
	geometry monitor.Rect
}

// target returns the monitor as the hardware layer should address it, with
// the configured DDC display number applied.
func (s *monitorState) target() monitor.Monitor {
	m := s.monitor
	if s.settings.DDCDisplay > 0 {
		m.DDCDisplay = s.settings.DDCDisplay
	}
	return m
}

func (s *monitorState) limit(global monitor.GlobalSettings) time.Duration {
	if s.settings.InactivityLimit > 0 {
		return s.settings.InactivityLimit
	}
	return global.InactivityLimit
}

func (s *monitorState) wanted() effects {
	if s.phase != PhaseDimmed {
		return effects{}
	}

	return effects{
		hardware: s.settings.HardwareDimEnabled && s.monitor.SupportsHardwareDimming &&
			!s.hwUnsupported && !s.hwFailed,
		level:    s.settings.HardwareDimLevel,
		overlay:  s.settings.SoftwareDimEnabled && !s.overlayFailed,
		opacity:  s.settings.SoftwareOpacity,
		color:    s.settings.OverlayColor,
		geometry: s.monitor.Geometry,
	}
}

// settled reports whether the applied effects already match want.
func (s *monitorState) settled(want effects) bool {
	if want.hardware != s.hwApplied || (want.hardware && want.level != s.hwLevel) {
		return false
	}
	if want.overlay {
		return s.overlaySettled(want)
	}
	return !s.overlayApplied
}

func (s *monitorState) overlaySettled(want effects) bool {
	return s.overlayApplied && s.overlayOpacity == want.opacity &&
		s.overlayColor == want.color && s.overlayGeometry == want.geometry
}

func (s *monitorState) snapshot(global monitor.GlobalSettings) MonitorSnapshot {
	return MonitorSnapshot{
		Monitor:             s.monitor,
		Phase:               s.phase,
		Settings:            s.settings,
		LastActivity:        s.lastActivity,
		InactivityLimit:     s.limit(global),
		HardwareApplied:     s.hwApplied,
		OverlayApplied:      s.overlayApplied,
		HardwareUnsupported: s.hwUnsupported,
		SessionID:           s.sessionID,
	}
}
