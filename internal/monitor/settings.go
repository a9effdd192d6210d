package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
)

const (
	DefaultInactivityLimit  = 10 * time.Second
	DefaultFadeTime         = 500 * time.Millisecond
	DefaultFadeSteps        = 10
	DefaultHardwareDimLevel = 30
	DefaultSoftwareOpacity  = 50
	DefaultHotkey           = "ctrl+alt+a"
)

// Color is a 24-bit RGB overlay color.
type Color struct {
	R, G, B uint8
}

// Black is the default overlay color.
var Black = Color{}

// ParseColor accepts "#rrggbb", "rrggbb" and "#rgb".
func ParseColor(s string) (Color, error) {
	errFactory := errors.New()
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, errFactory.WithData(errors.ErrInvalidArgument, fmt.Sprintf("color %q", s))
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, errFactory.WithData(errors.ErrInvalidArgument, fmt.Sprintf("color %q", s))
	}

	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustParseColor is ParseColor for compile-time constants.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Pixel returns the color packed as 0x00RRGGBB, the layout of a 24-bit
// TrueColor visual.
func (c Color) Pixel() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Settings are the per-monitor dimming settings.
type Settings struct {
	// InactivityLimit overrides the global limit when non-zero.
	InactivityLimit    time.Duration `json:"inactivity_limit,omitempty"`
	HardwareDimEnabled bool          `json:"hardware_dim_enabled"`
	HardwareDimLevel   int           `json:"hardware_dim_level"`
	SoftwareDimEnabled bool          `json:"software_dim_enabled"`
	SoftwareOpacity    int           `json:"software_opacity"`
	OverlayColor       Color         `json:"overlay_color"`
	// DDCDisplay overrides the enumerated ddcutil display number when non-zero.
	DDCDisplay int `json:"ddc_display,omitempty"`
}

// DefaultSettings returns the settings a newly seen monitor starts with.
func DefaultSettings() Settings {
	return Settings{
		HardwareDimEnabled: true,
		HardwareDimLevel:   DefaultHardwareDimLevel,
		SoftwareDimEnabled: true,
		SoftwareOpacity:    DefaultSoftwareOpacity,
		OverlayColor:       Black,
	}
}

// Validate checks ranges.
func (s Settings) Validate() error {
	errFactory := errors.New()
	if s.InactivityLimit < 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, "inactivity limit must not be negative")
	}
	if s.HardwareDimLevel < 0 || s.HardwareDimLevel > 100 {
		return errFactory.WithData(errors.ErrInvalidArgument, "hardware dim level out of range 0-100")
	}
	if s.SoftwareOpacity < 0 || s.SoftwareOpacity > 100 {
		return errFactory.WithData(errors.ErrInvalidArgument, "software opacity out of range 0-100")
	}
	if s.DDCDisplay < 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, "ddc display must not be negative")
	}
	return nil
}

// GlobalSettings are process-wide settings shared by every monitor.
type GlobalSettings struct {
	InactivityLimit time.Duration `json:"inactivity_limit"`
	Hotkey          string        `json:"hotkey"`
	AwakeMode       bool          `json:"awake_mode"`
	FadeTime        time.Duration `json:"fade_time"`
	FadeSteps       int           `json:"fade_steps"`
}

// DefaultGlobalSettings mirrors the defaults of a fresh configuration file.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		InactivityLimit: DefaultInactivityLimit,
		Hotkey:          DefaultHotkey,
		FadeTime:        DefaultFadeTime,
		FadeSteps:       DefaultFadeSteps,
	}
}

// Validate checks ranges.
func (g GlobalSettings) Validate() error {
	errFactory := errors.New()
	if g.InactivityLimit <= 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, "inactivity limit must be positive")
	}
	if g.FadeTime < 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, "fade time must not be negative")
	}
	if g.FadeSteps < 1 {
		return errFactory.WithData(errors.ErrInvalidArgument, "fade steps must be at least 1")
	}
	return nil
}

// Document is the persisted settings payload: global fields plus per-monitor
// settings keyed by monitor identity.
type Document struct {
	Global   GlobalSettings
	Monitors map[ID]Settings
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := Document{Global: d.Global, Monitors: make(map[ID]Settings, len(d.Monitors))}
	for id, s := range d.Monitors {
		out.Monitors[id] = s
	}
	return out
}
