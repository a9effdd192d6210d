package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/monitornap/internal/config"
	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_level = "debug"

[engine]
interval = "500ms"

[hardware]
ddcutil = "/usr/local/bin/ddcutil"
ddc_timeout = "2s"

[history]
enabled = true
path = "/tmp/monitornap-history.db"

[global]
inactivity_limit = "45s"
hotkey = "ctrl+shift+n"
awake_mode = true
fade_time = "1s"
fade_steps = 20

[[monitors]]
id = "DP-1"
hardware_dim_level = 60
overlay_color = "#202020"
ddc_display = 2

[[monitors]]
id = "eDP-1"
inactivity_limit = "2m"
software_dim_enabled = false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitornap.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	config.RegisterDaemonFlags(fs)
	return fs
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("MONITORNAP_CONFIG", path)

	cfg, err := config.Load(newFlags())
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, logger.DebugLevel, cfg.Level())
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
	assert.Equal(t, config.DefaultRefreshInterval, cfg.RefreshInterval)
	assert.Equal(t, "/usr/local/bin/ddcutil", cfg.DDCUtil)
	assert.Equal(t, 2*time.Second, cfg.DDCTimeout)
	assert.True(t, cfg.HistoryEnabled)
	assert.Equal(t, "/tmp/monitornap-history.db", cfg.HistoryPath)

	assert.Equal(t, monitor.GlobalSettings{
		InactivityLimit: 45 * time.Second,
		Hotkey:          "ctrl+shift+n",
		AwakeMode:       true,
		FadeTime:        time.Second,
		FadeSteps:       20,
	}, cfg.Settings.Global)

	require.Len(t, cfg.Settings.Monitors, 2)
	dp := monitor.DefaultSettings()
	dp.HardwareDimLevel = 60
	dp.OverlayColor = monitor.MustParseColor("#202020")
	dp.DDCDisplay = 2
	assert.Equal(t, dp, cfg.Settings.Monitors["DP-1"])

	edp := monitor.DefaultSettings()
	edp.InactivityLimit = 2 * time.Minute
	edp.SoftwareDimEnabled = false
	assert.Equal(t, edp, cfg.Settings.Monitors["eDP-1"])
}

func TestLoadDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := config.Load(newFlags(), config.WithConfigFile(missing))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, logger.InfoLevel, cfg.Level())
	assert.Equal(t, config.DefaultInterval, cfg.Interval)
	assert.Equal(t, config.DefaultDDCUtil, cfg.DDCUtil)
	assert.Equal(t, config.DefaultBacklightRoot, cfg.BacklightRoot)
	assert.False(t, cfg.HistoryEnabled)
	assert.Equal(t, monitor.DefaultGlobalSettings(), cfg.Settings.Global)
	assert.Empty(t, cfg.Settings.Monitors)
}

func TestFlagsAndEnvironmentOverrideFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("MONITORNAP_GLOBAL_INACTIVITY_LIMIT", "90s")
	t.Setenv("MONITORNAP_LOG_LEVEL", "error")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--config", path, "--interval", "2s", "--verbose"}))

	cfg, err := config.Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 90*time.Second, cfg.Settings.Global.InactivityLimit)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, logger.InfoLevel, cfg.Level())
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{"malformed toml", "interval = [", config.ErrReadConfig},
		{"bad log level", `log_level = "loud"`, errors.ErrInvalidLogLevel},
		{"zero limit", "[global]\ninactivity_limit = \"0s\"", config.ErrInvalidConfig},
		{"monitor without id", "[[monitors]]\nsoftware_opacity = 10", config.ErrInvalidConfig},
		{"duplicate id", "[[monitors]]\nid = \"A\"\n[[monitors]]\nid = \"A\"", config.ErrDuplicateID},
		{"opacity range", "[[monitors]]\nid = \"A\"\nsoftware_opacity = 120", config.ErrInvalidConfig},
		{"bad color", "[[monitors]]\nid = \"A\"\noverlay_color = \"navy\"", config.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(nil, config.WithConfigFile(writeConfig(t, tt.content)))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestSaveRoundTripKeepsOtherKeys(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	store := config.NewStore(path, logger.Get())

	cfg, err := config.Load(nil, config.WithConfigFile(path))
	require.NoError(t, err)

	doc := cfg.Settings.Clone()
	doc.Global.AwakeMode = false
	s := monitor.DefaultSettings()
	s.SoftwareOpacity = 75
	doc.Monitors["HDMI-1"] = s
	require.NoError(t, store.Save(doc))

	reloaded, err := config.Load(nil, config.WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, doc, reloaded.Settings)
	assert.Equal(t, "/usr/local/bin/ddcutil", reloaded.DDCUtil)
	assert.True(t, reloaded.HistoryEnabled)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestSaveCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "monitornap.toml")
	store := config.NewStore(path, logger.Get())
	assert.False(t, store.Exists())

	doc := monitor.Document{Global: monitor.DefaultGlobalSettings(), Monitors: map[monitor.ID]monitor.Settings{}}
	require.NoError(t, store.Save(doc))
	assert.True(t, store.Exists())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestWatchReportsExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitornap.toml")
	store := config.NewStore(path, logger.Get())
	doc := monitor.Document{Global: monitor.DefaultGlobalSettings(), Monitors: map[monitor.ID]monitor.Settings{}}
	require.NoError(t, store.Save(doc))

	var (
		mu   sync.Mutex
		seen []monitor.Document
	)
	store.Watch(func(d monitor.Document) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, d)
	})

	edited := "[global]\ninactivity_limit = \"1m\"\nhotkey = \"ctrl+alt+a\"\nfade_time = \"500ms\"\nfade_steps = 10\n"
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, d := range seen {
			if d.Global.InactivityLimit == time.Minute {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
}
