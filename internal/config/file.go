package config

import (
	"sort"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

// fileConfig mirrors the TOML layout. Per-monitor fields that default to
// something other than their zero value are pointers so an omitted key keeps
// the default.
type fileConfig struct {
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
	Socket   string `mapstructure:"socket"`

	Engine struct {
		Interval        time.Duration `mapstructure:"interval"`
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	} `mapstructure:"engine"`

	Hardware struct {
		DDCUtil       string        `mapstructure:"ddcutil"`
		DDCTimeout    time.Duration `mapstructure:"ddc_timeout"`
		BacklightRoot string        `mapstructure:"backlight_root"`
	} `mapstructure:"hardware"`

	History struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"history"`

	Global struct {
		InactivityLimit time.Duration `mapstructure:"inactivity_limit"`
		Hotkey          string        `mapstructure:"hotkey"`
		AwakeMode       bool          `mapstructure:"awake_mode"`
		FadeTime        time.Duration `mapstructure:"fade_time"`
		FadeSteps       int           `mapstructure:"fade_steps"`
	} `mapstructure:"global"`

	Monitors []fileMonitor `mapstructure:"monitors"`
}

type fileMonitor struct {
	ID                 string        `mapstructure:"id"`
	InactivityLimit    time.Duration `mapstructure:"inactivity_limit"`
	HardwareDimEnabled *bool         `mapstructure:"hardware_dim_enabled"`
	HardwareDimLevel   *int          `mapstructure:"hardware_dim_level"`
	SoftwareDimEnabled *bool         `mapstructure:"software_dim_enabled"`
	SoftwareOpacity    *int          `mapstructure:"software_opacity"`
	OverlayColor       string        `mapstructure:"overlay_color"`
	DDCDisplay         int           `mapstructure:"ddc_display"`
}

func (f fileConfig) document() (monitor.Document, error) {
	errFactory := errors.New()

	doc := monitor.Document{
		Global: monitor.GlobalSettings{
			InactivityLimit: f.Global.InactivityLimit,
			Hotkey:          f.Global.Hotkey,
			AwakeMode:       f.Global.AwakeMode,
			FadeTime:        f.Global.FadeTime,
			FadeSteps:       f.Global.FadeSteps,
		},
		Monitors: make(map[monitor.ID]monitor.Settings, len(f.Monitors)),
	}

	for _, m := range f.Monitors {
		if m.ID == "" {
			return monitor.Document{}, errFactory.WithData(ErrInvalidConfig, "monitor entry without id")
		}
		id := monitor.ID(m.ID)
		if _, dup := doc.Monitors[id]; dup {
			return monitor.Document{}, errFactory.WithData(ErrDuplicateID, m.ID)
		}
		settings, err := m.settings()
		if err != nil {
			return monitor.Document{}, err
		}
		doc.Monitors[id] = settings
	}

	return doc, nil
}

func (m fileMonitor) settings() (monitor.Settings, error) {
	s := monitor.DefaultSettings()
	s.InactivityLimit = m.InactivityLimit
	s.DDCDisplay = m.DDCDisplay
	if m.HardwareDimEnabled != nil {
		s.HardwareDimEnabled = *m.HardwareDimEnabled
	}
	if m.HardwareDimLevel != nil {
		s.HardwareDimLevel = *m.HardwareDimLevel
	}
	if m.SoftwareDimEnabled != nil {
		s.SoftwareDimEnabled = *m.SoftwareDimEnabled
	}
	if m.SoftwareOpacity != nil {
		s.SoftwareOpacity = *m.SoftwareOpacity
	}
	if m.OverlayColor != "" {
		color, err := monitor.ParseColor(m.OverlayColor)
		if err != nil {
			return monitor.Settings{}, errors.New().Wrap(ErrInvalidConfig, err)
		}
		s.OverlayColor = color
	}
	return s, nil
}

// monitorTables renders the per-monitor settings as [[monitors]] tables in
// id order.
func monitorTables(doc monitor.Document) []map[string]any {
	ids := make([]string, 0, len(doc.Monitors))
	for id := range doc.Monitors {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	tables := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		s := doc.Monitors[monitor.ID(id)]
		tables = append(tables, map[string]any{
			"id":                   id,
			"inactivity_limit":     s.InactivityLimit.String(),
			"hardware_dim_enabled": s.HardwareDimEnabled,
			"hardware_dim_level":   s.HardwareDimLevel,
			"software_dim_enabled": s.SoftwareDimEnabled,
			"software_opacity":     s.SoftwareOpacity,
			"overlay_color":        s.OverlayColor.String(),
			"ddc_display":          s.DDCDisplay,
		})
	}
	return tables
}
