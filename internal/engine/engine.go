// Package engine runs the per-monitor dimming state machine.
package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/notify"
)

const (
	DefaultInterval        = time.Second
	DefaultRefreshInterval = 3 * time.Second
	DefaultIdentifyTime    = time.Second
)

// KindMonitorsChanged tags the notification sent when monitors appear or
// disappear. It is informational, not an error.
const KindMonitorsChanged = errors.ErrorCode("monitors_changed")

// command runs inside a tick.
type command func(t *tick)

// tick carries per-evaluation context.
type tick struct {
	ctx     context.Context
	now     time.Time
	changed bool
	// settled monitors had their phase set by a command this tick and skip
	// timer evaluation until the next one.
	settled map[monitor.ID]bool
	// after runs once the tick has released the engine.
	after []func()
}

// Engine owns the dimming state of every monitor. All state is mutated by
// Tick; the public methods enqueue commands and wake the loop.
type Engine struct {
	deps     Deps
	logger   logger.Logger
	clock    Clock
	recorder Recorder
	hotkeys  HotkeyBinder

	interval        time.Duration
	refreshInterval time.Duration
	identifyTime    time.Duration

	tickMu        sync.Mutex
	doc           monitor.Document
	pausedUntil   time.Time
	states        map[monitor.ID]*monitorState
	lastEnumerate time.Time
	enumerate     atomic.Bool

	queueMu sync.Mutex
	queue   []command
	wake    chan struct{}

	snapMu   sync.RWMutex
	snapshot Snapshot

	listenersMu sync.Mutex
	listeners   []func(monitor.Document)

	background sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

func WithHotkeyBinder(binder HotkeyBinder) Option {
	return func(e *Engine) { e.hotkeys = binder }
}

// WithInterval sets the evaluation cadence.
func WithInterval(interval time.Duration) Option {
	return func(e *Engine) { e.interval = interval }
}

// WithRefreshInterval sets how often monitors are re-enumerated without a
// change notification.
func WithRefreshInterval(interval time.Duration) Option {
	return func(e *Engine) { e.refreshInterval = interval }
}

func WithIdentifyTime(d time.Duration) Option {
	return func(e *Engine) { e.identifyTime = d }
}

// New creates an engine starting from the persisted settings doc.
func New(deps Deps, doc monitor.Document, log logger.Logger, opts ...Option) *Engine {
	if deps.Notifier == nil {
		deps.Notifier = notify.Log{Logger: log}
	}
	if doc.Monitors == nil {
		doc.Monitors = make(map[monitor.ID]monitor.Settings)
	}

	e := &Engine{
		deps:            deps,
		logger:          log,
		clock:           systemClock{},
		recorder:        nopRecorder{},
		interval:        DefaultInterval,
		refreshInterval: DefaultRefreshInterval,
		identifyTime:    DefaultIdentifyTime,
		doc:             doc.Clone(),
		states:          make(map[monitor.ID]*monitorState),
		wake:            make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.enumerate.Store(true)
	deps.Dimmer.SetFade(doc.Global.FadeTime, doc.Global.FadeSteps)
	deps.Overlay.SetFade(doc.Global.FadeTime, doc.Global.FadeSteps)
	e.publish(e.clock.Now())

	return e
}

// OnSettingsChange registers fn to receive the settings document whenever a
// tick changed it.
func (e *Engine) OnSettingsChange(fn func(monitor.Document)) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Snapshot returns a deep copy of the most recently published state.
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot.clone()
}

// Settings returns a copy of the current settings document.
func (e *Engine) Settings() monitor.Document {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	return e.doc.Clone()
}

// DisplayChanged schedules a re-enumeration on the next tick and wakes the
// loop.
func (e *Engine) DisplayChanged() {
	e.enumerate.Store(true)
	e.signal()
}

// Run evaluates immediately, then on every interval, display change and
// command until ctx is cancelled. Effects stay applied on return; call
// Shutdown to restore them.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	changes := e.deps.Registry.Changes()

	e.logger.Info().Dur("interval", e.interval).Msg("Dimming engine started")
	e.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			e.background.Wait()
			e.logger.Info().Msg("Dimming engine stopped")
			return ctx.Err()
		case <-changes:
			e.logger.Debug().Msg("Display configuration changed")
			e.enumerate.Store(true)
			e.Tick(ctx)
		case <-e.wake:
			e.Tick(ctx)
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one evaluation: drain commands, reconcile monitors, sample
// activity, update phases, apply effects and publish a snapshot.
func (e *Engine) Tick(ctx context.Context) {
	e.tickMu.Lock()

	t := &tick{ctx: ctx, now: e.clock.Now(), settled: make(map[monitor.ID]bool)}

	if e.enumerate.Swap(false) || t.now.Sub(e.lastEnumerate) >= e.refreshInterval {
		e.reconcile(t)
	}

	for _, cmd := range e.drain() {
		cmd(t)
	}

	if !e.pausedUntil.IsZero() && !t.now.Before(e.pausedUntil) {
		e.logger.Info().Msg("Pause expired")
		e.pausedUntil = time.Time{}
	}

	for _, id := range e.order() {
		e.evaluate(t, e.states[id])
	}

	e.applyEffects(ctx)
	e.publish(t.now)

	var doc monitor.Document
	if t.changed {
		doc = e.doc.Clone()
	}
	e.tickMu.Unlock()

	if t.changed {
		e.emitSettings(doc)
	}
	for _, fn := range t.after {
		fn()
	}
}

// Shutdown restores every applied effect and waits for identify flashes.
func (e *Engine) Shutdown(ctx context.Context) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	for _, s := range e.states {
		if s.phase == PhaseDimmed {
			e.transition(s, PhaseActive, "shutdown", e.clock.Now())
		}
	}
	e.applyEffects(ctx)

	if err := e.deps.Dimmer.RestoreAll(ctx); err != nil {
		e.logger.ErrorWithContext(errors.Coded(err, errors.ErrOperationFailed), "hardware", "restore_all").
			Msg("Failed to restore all brightness")
	}

	e.background.Wait()
	e.publish(e.clock.Now())
}

func (e *Engine) override(now time.Time) (Phase, bool) {
	if e.doc.Global.AwakeMode {
		return PhaseOverrideAwake, true
	}
	if !e.pausedUntil.IsZero() && now.Before(e.pausedUntil) {
		return PhaseOverridePaused, true
	}
	return PhaseActive, false
}

func (e *Engine) evaluate(t *tick, s *monitorState) {
	inUse, err := e.deps.Probe.Sample(t.ctx, s.monitor)
	switch {
	case err != nil && !s.probeFailing:
		s.probeFailing = true
		e.notify(errors.ErrProbeFailure, s.monitor.ID, err.Error())
	case err == nil && s.probeFailing:
		s.probeFailing = false
		e.logger.Info().Str("monitor", string(s.monitor.ID)).Msg("Activity sampling recovered")
	}

	if inUse {
		s.lastActivity = t.now
	}

	if override, ok := e.override(t.now); ok {
		e.transition(s, override, "override", t.now)
		return
	}

	if t.settled[s.monitor.ID] {
		return
	}

	idle := t.now.Sub(s.lastActivity) > s.limit(e.doc.Global)

	switch s.phase {
	case PhaseOverrideAwake, PhaseOverridePaused:
		if idle {
			e.transition(s, PhaseDimmed, "override lifted while idle", t.now)
		} else {
			e.transition(s, PhaseActive, "override lifted", t.now)
		}
	case PhaseActive:
		if idle {
			e.transition(s, PhaseDimmed, "inactivity", t.now)
		}
	case PhaseDimmed:
		if inUse {
			e.transition(s, PhaseActive, "activity", t.now)
		}
	}
}

func (e *Engine) transition(s *monitorState, to Phase, reason string, now time.Time) {
	from := s.phase
	if from == to {
		return
	}

	if to == PhaseDimmed {
		s.sessionID = uuid.NewString()
	}
	sessionID := s.sessionID
	if from == PhaseDimmed {
		s.sessionID = ""
		s.hwFailed = false
		s.overlayFailed = false
	}
	s.phase = to

	e.logger.Info().
		Str("monitor", string(s.monitor.ID)).
		Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", reason).
		Msg("Monitor phase changed")

	e.recorder.RecordTransition(Transition{
		Time:      now,
		MonitorID: s.monitor.ID,
		From:      from,
		To:        to,
		Reason:    reason,
		SessionID: sessionID,
	})
}

// applyEffects brings every monitor's applied effects in line with its
// phase. Monitors are handled concurrently; each monitor's effects run in
// order on its own goroutine.
func (e *Engine) applyEffects(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range e.states {
		want := s.wanted()
		if s.settled(want) {
			continue
		}

		wg.Add(1)
		go func(s *monitorState, want effects) {
			defer wg.Done()
			e.apply(ctx, s, want)
		}(s, want)
	}
	wg.Wait()
}

func (e *Engine) apply(ctx context.Context, s *monitorState, want effects) {
	target := s.target()

	if !want.hardware && s.hwApplied {
		if err := e.deps.Dimmer.Restore(ctx, target); err != nil {
			e.logger.ErrorWithContext(errors.Coded(err, errors.ErrOperationFailed), "hardware", "restore").
				Str("monitor", string(s.monitor.ID)).
				Msg("Failed to restore brightness")
		} else {
			s.hwApplied = false
		}
	}

	if !want.overlay && s.overlayApplied {
		e.deps.Overlay.Hide(target)
		s.overlayApplied = false
	}

	if want.overlay && !s.overlaySettled(want) {
		if err := e.deps.Overlay.Show(ctx, target, want.opacity, want.color); err != nil {
			// Show may have created the window before failing.
			e.deps.Overlay.Hide(target)
			s.overlayApplied = false
			s.overlayFailed = true
			if !s.overlayNotified {
				s.overlayNotified = true
				e.notify(errors.ErrOverlayFailure, s.monitor.ID, err.Error())
			}
		} else {
			s.overlayApplied = true
			s.overlayNotified = false
			s.overlayOpacity = want.opacity
			s.overlayColor = want.color
			s.overlayGeometry = want.geometry
		}
	}

	if want.hardware && (!s.hwApplied || s.hwLevel != want.level) {
		err := e.deps.Dimmer.Dim(ctx, target, want.level)
		switch {
		case err == nil:
			s.hwApplied = true
			s.hwLevel = want.level
			s.hwNotified = false
		case errors.HasCode(err, errors.ErrUnsupportedDevice):
			s.hwUnsupported = true
			e.rollbackHardware(ctx, s, target)
			e.notify(errors.ErrUnsupportedDevice, s.monitor.ID, err.Error())
		default:
			s.hwFailed = true
			e.rollbackHardware(ctx, s, target)
			if !s.hwNotified {
				s.hwNotified = true
				e.notify(errors.CodeOf(err), s.monitor.ID, err.Error())
			}
		}
	}
}

// rollbackHardware undoes a partially applied dim.
func (e *Engine) rollbackHardware(ctx context.Context, s *monitorState, target monitor.Monitor) {
	if err := e.deps.Dimmer.Restore(ctx, target); err != nil {
		e.logger.Debug().Str("monitor", string(s.monitor.ID)).Err(err).Msg("Failed to roll back brightness")
	}
	s.hwApplied = false
}

// reconcile re-enumerates monitors. Removed monitors have their effects
// undone before their state is deleted.
func (e *Engine) reconcile(t *tick) {
	initial := e.lastEnumerate.IsZero()
	e.lastEnumerate = t.now

	monitors, err := e.deps.Registry.Enumerate(t.ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to enumerate monitors")
		return
	}

	seen := make(map[monitor.ID]bool, len(monitors))
	var added, removed []string

	for _, m := range monitors {
		seen[m.ID] = true

		if s, ok := e.states[m.ID]; ok {
			if s.monitor.Geometry != m.Geometry {
				e.logger.Debug().
					Str("monitor", string(m.ID)).
					Str("geometry", m.Geometry.String()).
					Msg("Monitor geometry changed")
			}
			s.monitor = m
			continue
		}

		settings, ok := e.doc.Monitors[m.ID]
		if !ok {
			settings = monitor.DefaultSettings()
			e.doc.Monitors[m.ID] = settings
			t.changed = true
		}

		phase := PhaseActive
		if override, active := e.override(t.now); active {
			phase = override
		}

		e.states[m.ID] = &monitorState{
			monitor:      m,
			settings:     settings,
			phase:        phase,
			lastActivity: t.now,
		}
		added = append(added, string(m.ID))
		e.logger.Info().
			Str("monitor", string(m.ID)).
			Str("geometry", m.Geometry.String()).
			Str("phase", phase.String()).
			Msg("Monitor added")
	}

	for id, s := range e.states {
		if seen[id] {
			continue
		}
		e.deps.Overlay.Hide(s.target())
		if err := e.deps.Dimmer.Restore(t.ctx, s.target()); err != nil {
			e.logger.ErrorWithContext(errors.Coded(err, errors.ErrOperationFailed), "hardware", "restore").
				Str("monitor", string(id)).
				Msg("Failed to restore removed monitor")
		}
		delete(e.states, id)
		removed = append(removed, string(id))
		e.logger.Info().Str("monitor", string(id)).Msg("Monitor removed")
	}

	if !initial && (len(added) > 0 || len(removed) > 0) {
		sort.Strings(added)
		sort.Strings(removed)
		e.notify(KindMonitorsChanged, "", monitorsChangedMessage(added, removed))
	}
}

func monitorsChangedMessage(added, removed []string) string {
	var parts []string
	if len(added) > 0 {
		parts = append(parts, "added "+strings.Join(added, " "))
	}
	if len(removed) > 0 {
		parts = append(parts, "removed "+strings.Join(removed, " "))
	}
	return strings.Join(parts, ", ")
}

// order returns monitor ids in enumeration order.
func (e *Engine) order() []monitor.ID {
	ids := make([]monitor.ID, 0, len(e.states))
	for id := range e.states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := e.states[ids[i]].monitor, e.states[ids[j]].monitor
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.ID < b.ID
	})
	return ids
}

func (e *Engine) publish(now time.Time) {
	snap := Snapshot{
		Time:        now,
		Global:      e.doc.Global,
		PausedUntil: e.pausedUntil,
		Monitors:    make([]MonitorSnapshot, 0, len(e.states)),
	}
	for _, id := range e.order() {
		snap.Monitors = append(snap.Monitors, e.states[id].snapshot(e.doc.Global))
	}

	e.snapMu.Lock()
	e.snapshot = snap
	e.snapMu.Unlock()
}

func (e *Engine) emitSettings(doc monitor.Document) {
	e.listenersMu.Lock()
	listeners := make([]func(monitor.Document), len(e.listeners))
	copy(listeners, e.listeners)
	e.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(doc.Clone())
	}
}

func (e *Engine) notify(kind errors.ErrorCode, id monitor.ID, message string) {
	e.deps.Notifier.Notify(notify.Notification{
		Kind:      kind,
		MonitorID: id,
		Message:   message,
		Time:      e.clock.Now(),
	})
}

func (e *Engine) enqueue(cmd command) {
	e.queueMu.Lock()
	e.queue = append(e.queue, cmd)
	e.queueMu.Unlock()
	e.signal()
}

func (e *Engine) drain() []command {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	cmds := e.queue
	e.queue = nil
	return cmds
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}
