package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/monitornap/internal/engine"
	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"codeberg.org/mutker/monitornap/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	snapshot engine.Snapshot
	settings map[monitor.ID]monitor.Settings
	global   engine.GlobalSettingsUpdate
	synced   int
}

func newFakeController() *fakeController {
	return &fakeController{
		snapshot: engine.Snapshot{
			Time:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
			Global: monitor.DefaultGlobalSettings(),
			Monitors: []engine.MonitorSnapshot{{
				Monitor:  monitor.Monitor{ID: "DP-1", Index: 0},
				Phase:    engine.PhaseDimmed,
				Settings: monitor.DefaultSettings(),
			}},
		},
		settings: map[monitor.ID]monitor.Settings{},
	}
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) state() (int, engine.GlobalSettingsUpdate, map[monitor.ID]monitor.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	settings := make(map[monitor.ID]monitor.Settings, len(f.settings))
	for id, s := range f.settings {
		settings[id] = s
	}
	return f.synced, f.global, settings
}

func (f *fakeController) NapNow()          { f.record("nap") }
func (f *fakeController) ResumeNow()       { f.record("resume") }
func (f *fakeController) CancelPause()     { f.record("cancel_pause") }
func (f *fakeController) ToggleAwakeMode() { f.record("toggle_awake") }

func (f *fakeController) SetAwakeMode(enabled bool) {
	if enabled {
		f.record("awake_on")
		return
	}
	f.record("awake_off")
}

func (f *fakeController) PauseFor(minutes int) error {
	if minutes < 1 {
		return errors.New().WithData(errors.ErrInvalidArgument, "pause must be positive")
	}
	f.record("pause")
	return nil
}

func (f *fakeController) Identify(id monitor.ID) error {
	if _, ok := f.snapshot.Monitor(id); !ok {
		return errors.New().WithData(errors.ErrUnknownMonitor, string(id))
	}
	f.record("identify " + string(id))
	return nil
}

func (f *fakeController) UpdateGlobalSettings(update engine.GlobalSettingsUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global = update
	return nil
}

func (f *fakeController) UpdateMonitorSettings(id monitor.ID, settings monitor.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[id] = settings
	return nil
}

func (f *fakeController) Snapshot() engine.Snapshot { return f.snapshot }

func (f *fakeController) Sync(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced++
	return nil
}

type fakeTransitions []engine.Transition

func (f fakeTransitions) Recent(context.Context, int) ([]engine.Transition, error) { return f, nil }

func newTestClient(t *testing.T, ctrl engine.Controller, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(NewServer(ctrl, logger.Get(), opts...).Handler())
	t.Cleanup(srv.Close)
	return newHTTPClient(srv.Client(), srv.URL)
}

func TestStatus(t *testing.T) {
	ring := notify.NewRecorder(4)
	ring.Notify(notify.Notification{Kind: errors.ErrOverlayFailure, MonitorID: "DP-1", Message: "no shape"})
	transitions := fakeTransitions{{MonitorID: "DP-1", From: engine.PhaseActive, To: engine.PhaseDimmed, Reason: "inactive"}}

	client := newTestClient(t, newFakeController(), WithNotifications(ring), WithTransitions(transitions))

	st, err := client.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Monitors, 1)
	assert.Equal(t, engine.PhaseDimmed, st.Monitors[0].Phase)
	assert.Equal(t, monitor.DefaultGlobalSettings(), st.Global)
	require.Len(t, st.Notifications, 1)
	assert.Equal(t, errors.ErrOverlayFailure, st.Notifications[0].Kind)
	assert.Equal(t, []engine.Transition(transitions), st.Transitions)
}

func TestCommandsReachController(t *testing.T) {
	ctrl := newFakeController()
	client := newTestClient(t, ctrl)
	ctx := context.Background()

	_, err := client.Nap(ctx)
	require.NoError(t, err)
	_, err = client.Resume(ctx)
	require.NoError(t, err)
	_, err = client.Pause(ctx, 15)
	require.NoError(t, err)
	_, err = client.CancelPause(ctx)
	require.NoError(t, err)
	_, err = client.ToggleAwake(ctx)
	require.NoError(t, err)
	_, err = client.SetAwake(ctx, false)
	require.NoError(t, err)
	_, err = client.Identify(ctx, "DP-1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"nap", "resume", "pause", "cancel_pause", "toggle_awake", "awake_off", "identify DP-1",
	}, ctrl.Calls())
	synced, _, _ := ctrl.state()
	assert.Equal(t, 7, synced)
}

func TestErrorsKeepTheirCode(t *testing.T) {
	client := newTestClient(t, newFakeController())
	ctx := context.Background()

	_, err := client.Pause(ctx, 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))

	_, err = client.Identify(ctx, "HDMI-9")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrUnknownMonitor))
	assert.Contains(t, err.Error(), "HDMI-9")

	bad := monitor.DefaultSettings()
	bad.SoftwareOpacity = 150
	_, err = client.UpdateMonitorSettings(ctx, "DP-1", bad)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestSettingsUpdates(t *testing.T) {
	ctrl := newFakeController()
	client := newTestClient(t, ctrl)
	ctx := context.Background()

	limit := 30 * time.Second
	hotkey := "ctrl+alt+n"
	_, err := client.UpdateGlobalSettings(ctx, engine.GlobalSettingsUpdate{InactivityLimit: &limit, Hotkey: &hotkey})
	require.NoError(t, err)
	_, global, _ := ctrl.state()
	require.NotNil(t, global.InactivityLimit)
	assert.Equal(t, limit, *global.InactivityLimit)
	assert.Equal(t, hotkey, *global.Hotkey)
	assert.Nil(t, global.FadeTime)

	settings := monitor.DefaultSettings()
	settings.OverlayColor = monitor.MustParseColor("#102030")
	settings.DDCDisplay = 2
	_, err = client.UpdateMonitorSettings(ctx, "DP 1/left", settings)
	require.NoError(t, err)
	_, _, stored := ctrl.state()
	assert.Equal(t, settings, stored["DP 1/left"])
}

func TestMalformedBody(t *testing.T) {
	srv := httptest.NewServer(NewServer(newFakeController(), logger.Get()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/pause", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeOverUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	srv := NewServer(newFakeController(), logger.Get())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, path) }()

	client := NewClient(path)
	require.Eventually(t, func() bool {
		_, err := client.Status(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err := client.Status(context.Background())
	assert.True(t, errors.HasCode(err, ErrDaemonNotFound))
}
