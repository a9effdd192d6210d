package hardware

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

// session is one dim cycle of a monitor. device is the monitor as it was
// addressed when the original brightness was read; every write of the
// session goes there, even if the display is renumbered meanwhile.
type session struct {
	mu       sync.Mutex
	device   monitor.Monitor
	original int
	current  int
}

// Controller implements Dimmer over a Backend. Operations on different
// monitors may run concurrently.
type Controller struct {
	backend Backend
	logger  logger.Logger
	sleep   func(context.Context, time.Duration) error

	mu        sync.RWMutex
	sessions  map[monitor.ID]*session
	fadeTime  time.Duration
	fadeSteps int
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleep replaces the fade delay, used by tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// WithFade sets the initial fade duration and step count.
func WithFade(duration time.Duration, steps int) Option {
	return func(c *Controller) {
		c.fadeTime = duration
		c.fadeSteps = steps
	}
}

func NewController(backend Backend, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		backend:   backend,
		logger:    log,
		sleep:     sleepContext,
		sessions:  make(map[monitor.ID]*session),
		fadeTime:  monitor.DefaultFadeTime,
		fadeSteps: monitor.DefaultFadeSteps,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) SetFade(duration time.Duration, steps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fadeTime = duration
	c.fadeSteps = steps
}

func (c *Controller) Dim(ctx context.Context, m monitor.Monitor, level int) error {
	errFactory := errors.New()
	if level < 0 || level > 100 {
		return errFactory.WithData(errors.ErrInvalidArgument, "dim level out of range 0-100")
	}

	s, err := c.session(ctx, m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := Target(s.original, level)

	c.mu.RLock()
	fadeTime, steps := c.fadeTime, c.fadeSteps
	c.mu.RUnlock()

	for _, value := range fadeValues(s.current, target, steps) {
		if err := c.backend.SetBrightness(ctx, s.device, value); err != nil {
			return err
		}
		s.current = value
		if value != target && steps > 1 {
			if err := c.sleep(ctx, fadeTime/time.Duration(steps)); err != nil {
				return errFactory.Wrap(errors.ErrTimeout, err)
			}
		}
	}

	c.logger.Debug().
		Str("monitor", string(m.ID)).
		Int("original", s.original).
		Int("target", target).
		Int("level", level).
		Msg("Monitor brightness reduced")

	return nil
}

// session returns the open session for m, starting one and reading the
// original brightness if needed.
func (c *Controller) session(ctx context.Context, m monitor.Monitor) (*session, error) {
	c.mu.RLock()
	s, ok := c.sessions[m.ID]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	reading, err := c.backend.Brightness(ctx, m)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sessions[m.ID]; ok {
		return existing, nil
	}

	s = &session{device: m, original: reading.Current, current: reading.Current}
	c.sessions[m.ID] = s

	return s, nil
}

func (c *Controller) Restore(ctx context.Context, m monitor.Monitor) error {
	c.mu.Lock()
	s, ok := c.sessions[m.ID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.sessions, m.ID)
	c.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := c.backend.SetBrightness(ctx, s.device, s.original); err != nil {
		// Keep the session so a later Restore can retry.
		c.mu.Lock()
		if _, taken := c.sessions[m.ID]; !taken {
			c.sessions[m.ID] = s
		}
		c.mu.Unlock()
		return err
	}
	s.current = s.original

	c.logger.Debug().
		Str("monitor", string(m.ID)).
		Int("ddc_display", s.device.DDCDisplay).
		Int("brightness", s.original).
		Msg("Monitor brightness restored")

	return nil
}

func (c *Controller) RestoreAll(ctx context.Context) error {
	c.mu.RLock()
	pending := make([]monitor.Monitor, 0, len(c.sessions))
	for _, s := range c.sessions {
		pending = append(pending, s.device)
	}
	c.mu.RUnlock()

	var firstErr error
	for _, m := range pending {
		if err := c.Restore(ctx, m); err != nil {
			c.logger.ErrorWithContext(errors.Coded(err, errors.ErrOperationFailed), "hardware", "restore").
				Str("monitor", string(m.ID)).
				Msg("Failed to restore brightness")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Dimmed reports whether m has an open dim session.
func (c *Controller) Dimmed(id monitor.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sessions[id]
	return ok
}

// Target is the brightness after reducing original by level percent.
func Target(original, level int) int {
	if level <= 0 {
		return original
	}
	if level >= 100 {
		return 0
	}
	return original * (100 - level) / 100
}

// fadeValues returns the intermediate brightness values from one value to
// another, ending exactly at to.
func fadeValues(from, to, steps int) []int {
	if steps < 1 || from == to {
		steps = 1
	}
	values := make([]int, 0, steps)
	for i := 1; i <= steps; i++ {
		values = append(values, from+(to-from)*i/steps)
	}
	return values
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
