package engine

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/hotkey"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

// MaxPause is the longest pause PauseFor accepts.
const MaxPause = 24 * time.Hour

// NapNow dims every monitor immediately. It is ignored while awake mode or a
// pause is active.
func (e *Engine) NapNow() {
	e.enqueue(func(t *tick) {
		if phase, ok := e.override(t.now); ok {
			e.logger.Info().Str("override", phase.String()).Msg("Nap ignored while override is active")
			return
		}
		for _, id := range e.order() {
			s := e.states[id]
			e.transition(s, PhaseDimmed, "nap", t.now)
			t.settled[id] = true
		}
	})
}

// ResumeNow cancels a pause and wakes every dimmed monitor. Each monitor's
// inactivity timer restarts so nothing re-dims on the next tick.
func (e *Engine) ResumeNow() {
	e.enqueue(func(t *tick) {
		if !e.pausedUntil.IsZero() {
			e.logger.Info().Msg("Pause cancelled by resume")
			e.pausedUntil = time.Time{}
		}
		for _, id := range e.order() {
			s := e.states[id]
			s.lastActivity = t.now
			if s.phase == PhaseDimmed {
				e.transition(s, PhaseActive, "resume", t.now)
			}
		}
	})
}

// PauseFor suspends dimming for the given number of minutes, replacing any
// running pause.
func (e *Engine) PauseFor(minutes int) error {
	d := time.Duration(minutes) * time.Minute
	if minutes < 1 || d > MaxPause {
		return errors.New().WithData(errors.ErrInvalidArgument,
			fmt.Sprintf("pause must be between 1 and %d minutes", int(MaxPause/time.Minute)))
	}

	e.enqueue(func(t *tick) {
		e.pausedUntil = t.now.Add(d)
		e.logger.Info().Int("minutes", minutes).Time("until", e.pausedUntil).Msg("Dimming paused")
	})

	return nil
}

// CancelPause ends a running pause. Monitors resume evaluation from their
// existing inactivity timers.
func (e *Engine) CancelPause() {
	e.enqueue(func(*tick) {
		if e.pausedUntil.IsZero() {
			return
		}
		e.pausedUntil = time.Time{}
		e.logger.Info().Msg("Pause cancelled")
	})
}

func (e *Engine) ToggleAwakeMode() {
	e.enqueue(func(t *tick) {
		e.setAwake(t, !e.doc.Global.AwakeMode)
	})
}

func (e *Engine) SetAwakeMode(enabled bool) {
	e.enqueue(func(t *tick) {
		e.setAwake(t, enabled)
	})
}

func (e *Engine) setAwake(t *tick, enabled bool) {
	global := e.doc.Global
	global.AwakeMode = enabled
	e.setGlobal(t, global)
}

// Identify flashes the monitor without touching its phase or overlay.
func (e *Engine) Identify(id monitor.ID) error {
	if _, ok := e.Snapshot().Monitor(id); !ok {
		return errors.New().WithData(errors.ErrUnknownMonitor, string(id))
	}

	e.enqueue(func(t *tick) {
		s, ok := e.states[id]
		if !ok {
			return
		}
		target := s.target()

		e.background.Add(1)
		go func() {
			defer e.background.Done()
			if err := e.deps.Overlay.Flash(t.ctx, target, e.identifyTime); err != nil {
				e.notify(errors.ErrOverlayFailure, id, err.Error())
			}
		}()
	})

	return nil
}

// UpdateGlobalSettings validates and applies update. Changing the hotkey
// re-grabs it; a grab failure is notified and the binding is still saved.
func (e *Engine) UpdateGlobalSettings(update GlobalSettingsUpdate) error {
	errFactory := errors.New()

	candidate := update.apply(e.Snapshot().Global)
	if err := candidate.Validate(); err != nil {
		return err
	}
	if update.Hotkey != nil {
		binding, err := hotkey.ParseBinding(*update.Hotkey)
		if err != nil {
			return errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
		normalized := binding.String()
		update.Hotkey = &normalized
	}

	e.enqueue(func(t *tick) {
		e.setGlobal(t, update.apply(e.doc.Global))
	})

	return nil
}

// setGlobal replaces the global settings, pushing fade and hotkey changes to
// the collaborators that own them.
func (e *Engine) setGlobal(t *tick, after monitor.GlobalSettings) {
	before := e.doc.Global
	if after == before {
		return
	}
	e.doc.Global = after
	t.changed = true

	if after.FadeTime != before.FadeTime || after.FadeSteps != before.FadeSteps {
		e.deps.Dimmer.SetFade(after.FadeTime, after.FadeSteps)
		e.deps.Overlay.SetFade(after.FadeTime, after.FadeSteps)
	}
	if after.Hotkey != before.Hotkey {
		e.rebindHotkey(after.Hotkey)
	}
	if after.AwakeMode != before.AwakeMode {
		e.logger.Info().Bool("enabled", after.AwakeMode).Msg("Awake mode changed")
	}

	e.logger.Debug().
		Dur("inactivity_limit", after.InactivityLimit).
		Str("hotkey", after.Hotkey).
		Msg("Global settings updated")
}

func (e *Engine) rebindHotkey(binding string) {
	if e.hotkeys == nil {
		return
	}
	if err := e.hotkeys.Rebind(binding); err != nil {
		e.notify(errors.ErrHotkeyRegistration, "", err.Error())
	}
}

// UpdateMonitorSettings replaces the settings of a known monitor. Disabling
// an effect on a dimmed monitor undoes that effect on the same tick.
func (e *Engine) UpdateMonitorSettings(id monitor.ID, settings monitor.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if _, ok := e.Snapshot().Monitor(id); !ok {
		return errors.New().WithData(errors.ErrUnknownMonitor, string(id))
	}

	e.enqueue(func(t *tick) {
		e.setMonitorSettings(t, id, settings)
	})

	return nil
}

func (e *Engine) setMonitorSettings(t *tick, id monitor.ID, settings monitor.Settings) {
	if current, ok := e.doc.Monitors[id]; ok && current == settings {
		return
	}
	e.doc.Monitors[id] = settings
	t.changed = true

	if s, ok := e.states[id]; ok {
		if s.settings.DDCDisplay != settings.DDCDisplay {
			// Another DDC display number gets a fresh capability check.
			s.hwUnsupported = false
		}
		s.settings = settings
	}
	e.logger.Info().Str("monitor", string(id)).Msg("Monitor settings updated")
}

// ReplaceSettings applies a settings document loaded from outside, such as
// an edited configuration file. Awake mode and hotkey changes take effect
// like their dedicated commands.
func (e *Engine) ReplaceSettings(doc monitor.Document) error {
	if err := doc.Global.Validate(); err != nil {
		return err
	}
	for _, s := range doc.Monitors {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	doc = doc.Clone()

	e.enqueue(func(t *tick) {
		e.setGlobal(t, doc.Global)
		for id, settings := range doc.Monitors {
			e.setMonitorSettings(t, id, settings)
		}
	})

	return nil
}

// Sync waits until every command enqueued before the call has been applied
// and the resulting snapshot published.
func (e *Engine) Sync(ctx context.Context) error {
	done := make(chan struct{})
	e.enqueue(func(t *tick) {
		t.after = append(t.after, func() { close(done) })
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
