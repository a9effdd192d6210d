package overlay

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

const (
	DefaultRaiseInterval = time.Second
	flashOpacity         = 0.6
)

var flashColor = monitor.MustParseColor("#3584e4")

type surface struct {
	window   Window
	geometry monitor.Rect
	color    monitor.Color
	opacity  float64
}

// Manager implements Overlay over a Backend and keeps every overlay raised.
type Manager struct {
	backend Backend
	logger  logger.Logger
	sleep   func(context.Context, time.Duration) error

	mu        sync.Mutex
	surfaces  map[monitor.ID]*surface
	flashes   map[Window]struct{}
	fadeTime  time.Duration
	fadeSteps int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

func WithFade(duration time.Duration, steps int) Option {
	return func(m *Manager) {
		m.fadeTime = duration
		m.fadeSteps = steps
	}
}

// NewManager starts a goroutine that re-raises overlays every raiseInterval.
// A zero interval disables it.
func NewManager(backend Backend, log logger.Logger, raiseInterval time.Duration, opts ...Option) *Manager {
	m := &Manager{
		backend:   backend,
		logger:    log,
		sleep:     sleepContext,
		surfaces:  make(map[monitor.ID]*surface),
		flashes:   make(map[Window]struct{}),
		fadeTime:  monitor.DefaultFadeTime,
		fadeSteps: monitor.DefaultFadeSteps,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if raiseInterval > 0 {
		go m.keepOnTop(raiseInterval)
	} else {
		close(m.done)
	}

	return m
}

func (m *Manager) SetFade(duration time.Duration, steps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fadeTime = duration
	m.fadeSteps = steps
}

func (m *Manager) Show(ctx context.Context, mon monitor.Monitor, opacity int, color monitor.Color) error {
	errFactory := errors.New()

	if opacity < 0 || opacity > 100 {
		return errFactory.WithData(errors.ErrInvalidArgument, "opacity out of range 0-100")
	}
	if mon.Geometry.Empty() {
		return errFactory.WithData(errors.ErrOverlayFailure, "monitor "+string(mon.ID)+" has no geometry")
	}

	s, err := m.surface(mon, color)
	if err != nil {
		return err
	}

	if s.geometry != mon.Geometry {
		if err := s.window.Move(mon.Geometry); err != nil {
			return errFactory.Wrap(errors.ErrOverlayFailure, err)
		}
		s.geometry = mon.Geometry
	}
	if s.color != color {
		if err := s.window.SetColor(color); err != nil {
			return errFactory.Wrap(errors.ErrOverlayFailure, err)
		}
		s.color = color
	}

	m.mu.Lock()
	fadeTime, steps := m.fadeTime, m.fadeSteps
	m.mu.Unlock()

	target := float64(opacity) / 100
	for _, value := range fadeOpacity(s.opacity, target, steps) {
		if err := s.window.SetOpacity(value); err != nil {
			return errFactory.Wrap(errors.ErrOverlayFailure, err)
		}
		s.opacity = value
		if value != target {
			if err := m.sleep(ctx, fadeTime/time.Duration(steps)); err != nil {
				// A cancelled fade jumps straight to the final opacity.
				if err := s.window.SetOpacity(target); err == nil {
					s.opacity = target
				}
				return nil
			}
		}
	}

	if err := s.window.Raise(); err != nil {
		m.logger.Debug().Str("monitor", string(mon.ID)).Err(err).Msg("Failed to raise overlay")
	}

	return nil
}

// surface returns the overlay window for mon, creating a transparent one if
// none exists yet.
func (m *Manager) surface(mon monitor.Monitor, color monitor.Color) (*surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.surfaces[mon.ID]; ok {
		return s, nil
	}

	window, err := m.backend.Create(mon.Geometry, color, 0)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrOverlayFailure, err)
	}

	s := &surface{window: window, geometry: mon.Geometry, color: color}
	m.surfaces[mon.ID] = s

	m.logger.Debug().Str("monitor", string(mon.ID)).Str("geometry", mon.Geometry.String()).Msg("Overlay created")

	return s, nil
}

func (m *Manager) Hide(mon monitor.Monitor) {
	m.mu.Lock()
	s, ok := m.surfaces[mon.ID]
	delete(m.surfaces, mon.ID)
	m.mu.Unlock()

	if ok {
		s.window.Destroy()
		m.logger.Debug().Str("monitor", string(mon.ID)).Msg("Overlay removed")
	}
}

func (m *Manager) Visible(id monitor.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.surfaces[id]
	return ok
}

func (m *Manager) Flash(ctx context.Context, mon monitor.Monitor, d time.Duration) error {
	errFactory := errors.New()

	window, err := m.backend.Create(mon.Geometry, flashColor, flashOpacity)
	if err != nil {
		return errFactory.Wrap(errors.ErrOverlayFailure, err)
	}

	m.mu.Lock()
	m.flashes[window] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.flashes, window)
		m.mu.Unlock()
		window.Destroy()
	}()

	_ = window.Raise()
	_ = m.sleep(ctx, d)

	return nil
}

func (m *Manager) keepOnTop(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.raiseAll()
		}
	}
}

func (m *Manager) raiseAll() {
	m.mu.Lock()
	windows := make([]Window, 0, len(m.surfaces)+len(m.flashes))
	for _, s := range m.surfaces {
		windows = append(windows, s.window)
	}
	for w := range m.flashes {
		windows = append(windows, w)
	}
	m.mu.Unlock()

	for _, w := range windows {
		if err := w.Raise(); err != nil {
			m.logger.Debug().Err(err).Msg("Failed to raise overlay")
		}
	}
}

// Close stops the raise loop and destroys every overlay window.
func (m *Manager) Close() {
	m.once.Do(func() {
		close(m.stop)
		<-m.done

		m.mu.Lock()
		surfaces := m.surfaces
		m.surfaces = make(map[monitor.ID]*surface)
		m.mu.Unlock()

		for _, s := range surfaces {
			s.window.Destroy()
		}
	})
}

func fadeOpacity(from, to float64, steps int) []float64 {
	if steps < 1 || from == to {
		return []float64{to}
	}
	values := make([]float64, 0, steps)
	for i := 1; i < steps; i++ {
		values = append(values, from+(to-from)*float64(i)/float64(steps))
	}
	return append(values, to)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
