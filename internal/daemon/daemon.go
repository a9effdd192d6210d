// Package daemon wires the X11 backends, dimming engine, persistence and
// control socket into the long-running process.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/monitornap/internal/activity"
	"codeberg.org/mutker/monitornap/internal/config"
	"codeberg.org/mutker/monitornap/internal/control"
	"codeberg.org/mutker/monitornap/internal/display"
	"codeberg.org/mutker/monitornap/internal/engine"
	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/hardware"
	"codeberg.org/mutker/monitornap/internal/history"
	"codeberg.org/mutker/monitornap/internal/hotkey"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/notify"
	"codeberg.org/mutker/monitornap/internal/overlay"
	"codeberg.org/mutker/monitornap/internal/pid"
	"codeberg.org/mutker/monitornap/internal/power"
	"codeberg.org/mutker/monitornap/internal/xconn"
)

const (
	shutdownTimeout  = 5 * time.Second
	notificationRing = 50
	historyRetention = 30 * 24 * time.Hour
)

// Run starts every component, blocks until SIGINT, SIGTERM or ctx
// cancellation, then restores all monitors and saves the settings.
func Run(ctx context.Context, cfg *config.Config) error {
	errFactory := errors.New()
	log := logger.Get()

	pidPath := pid.DefaultPath()
	if err := pid.Write(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go handleSignals(ctx, cancel)

	conn, err := xconn.Dial(log)
	if err != nil {
		return err
	}
	defer conn.Close()

	registry, err := display.NewX11Registry(conn, log)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	ring := notify.NewRecorder(notificationRing)
	notifiers := notify.Multi{notify.Log{Logger: log}, ring}
	if desktop, err := notify.NewDesktop(log); err != nil {
		log.Warn().Err(err).Msg("Desktop notifications unavailable")
	} else {
		notifiers = append(notifiers, desktop)
	}

	doc := cfg.Settings
	global := doc.Global

	dimmer := hardware.NewController(hardware.Router{
		Internal: hardware.NewBacklight(cfg.BacklightRoot),
		External: hardware.NewDDC(cfg.DDCUtil, cfg.DDCTimeout),
	}, log, hardware.WithFade(global.FadeTime, global.FadeSteps))

	overlayBackend, err := overlay.NewX11Backend(conn)
	if err != nil {
		log.Warn().Err(err).Msg("Overlay backend unavailable")
		overlayBackend = overlay.Unavailable{Err: err}
	}
	overlays := overlay.NewManager(overlayBackend, log, overlay.DefaultRaiseInterval,
		overlay.WithFade(global.FadeTime, global.FadeSteps))
	defer overlays.Close()

	transitions, err := history.New(historyConfig(cfg), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := transitions.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close transition history")
		}
	}()
	if _, err := transitions.Prune(ctx, time.Now().Add(-historyRetention)); err != nil {
		log.Warn().Err(err).Msg("Failed to prune transition history")
	}

	var eng *engine.Engine
	hotkeys := hotkey.NewListener(conn, log, func() { eng.ToggleAwakeMode() })
	defer hotkeys.Close()

	eng = engine.New(engine.Deps{
		Registry: registry,
		Probe:    activity.NewProbe(activity.NewX11Backend(conn)),
		Dimmer:   dimmer,
		Overlay:  overlays,
		Notifier: notifiers,
	}, doc, log,
		engine.WithRecorder(transitions),
		engine.WithHotkeyBinder(hotkeys),
		engine.WithInterval(cfg.Interval),
		engine.WithRefreshInterval(cfg.RefreshInterval),
	)

	if err := hotkeys.Rebind(global.Hotkey); err != nil {
		notifiers.Notify(notify.Notification{
			Kind:    errors.ErrHotkeyRegistration,
			Message: err.Error(),
			Time:    time.Now(),
		})
	}

	store := config.NewStore(cfg.Path, log)
	if !store.Exists() {
		if err := store.Save(doc); err != nil {
			log.Warn().Err(err).Msg("Failed to write initial settings")
		}
	}
	eng.OnSettingsChange(func(doc monitor.Document) {
		if err := store.Save(doc); err != nil {
			log.Error().Err(err).Msg("Failed to save settings")
		}
	})
	store.Watch(func(doc monitor.Document) {
		if err := eng.ReplaceSettings(doc); err != nil {
			log.Warn().Err(err).Msg("Rejected edited settings file")
		}
	})

	socket := cfg.Socket
	if socket == "" {
		socket = control.DefaultSocketPath()
	}
	opts := []control.Option{control.WithNotifications(ring)}
	if cfg.HistoryEnabled {
		opts = append(opts, control.WithTransitions(transitions))
	}
	server := control.NewServer(eng, log, opts...)

	sleep := power.NewSleepWatcher(log, nil, eng.DisplayChanged)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx, socket); err != nil {
			log.Error().Err(err).Msg("Control socket failed")
		}
	}()
	go func() {
		defer wg.Done()
		sleep.Run(ctx)
	}()

	log.Info().
		Str("config", cfg.Path).
		Str("socket", socket).
		Bool("history", cfg.HistoryEnabled).
		Msg("MonitorNap started")

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Dimming engine stopped unexpectedly")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	eng.Shutdown(shutdownCtx)
	wg.Wait()

	if err := store.Save(eng.Settings()); err != nil {
		log.Error().Err(err).Msg("Failed to save settings on exit")
	}

	log.Info().Msg("Exiting...")

	return nil
}

func historyConfig(cfg *config.Config) history.Config {
	hc := history.DefaultConfig()
	hc.Enabled = cfg.HistoryEnabled
	if cfg.HistoryPath != "" {
		hc.DBPath = cfg.HistoryPath
	}
	return hc
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
		cancel()
	case <-ctx.Done():
	}
}
