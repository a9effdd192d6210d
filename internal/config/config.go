// Package config loads daemon options and the persisted dimming settings
// from a TOML file, MONITORNAP_* environment variables and command-line
// flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix       = "MONITORNAP"
	DefaultLogLevel        = "info"
	DefaultInterval        = time.Second
	DefaultRefreshInterval = 3 * time.Second
	DefaultDDCUtil         = "ddcutil"
	DefaultDDCTimeout      = 5 * time.Second
	DefaultBacklightRoot   = "/sys/class/backlight"

	configDir  = "monitornap"
	configName = "monitornap.toml"
	configType = "toml"
)

type Config struct {
	// Path is the settings file the config was read from and is saved to.
	Path     string
	LogLevel string
	Debug    bool
	Verbose  bool
	Socket   string

	Interval        time.Duration
	RefreshInterval time.Duration

	DDCUtil       string
	DDCTimeout    time.Duration
	BacklightRoot string

	HistoryEnabled bool
	HistoryPath    string

	Settings monitor.Document
}

type Option func(*options)

type options struct {
	configPath string
	envPrefix  string
}

// WithConfigFile overrides the --config flag and MONITORNAP_CONFIG.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = prefix }
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"config":     "config",
	"log-level":  "log_level",
	"debug":      "debug",
	"verbose":    "verbose",
	"socket":     "socket",
	"interval":   "engine.interval",
	"ddcutil":    "hardware.ddcutil",
	"history":    "history.enabled",
	"history-db": "history.path",
}

// RegisterFlags adds the options every command understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Settings file (default $XDG_CONFIG_HOME/monitornap/monitornap.toml)")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning, error")
	fs.Bool("debug", false, "Enable debug logging")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("socket", "", "Control socket path (default $XDG_RUNTIME_DIR/monitornap.sock)")
}

// RegisterDaemonFlags adds the options only the daemon uses.
func RegisterDaemonFlags(fs *pflag.FlagSet) {
	fs.Duration("interval", DefaultInterval, "Activity sampling interval")
	fs.String("ddcutil", DefaultDDCUtil, "ddcutil executable")
	fs.Bool("history", false, "Record phase transitions to a SQLite database")
	fs.String("history-db", "", "Transition history database path")
}

// DefaultPath is $XDG_CONFIG_HOME/monitornap/monitornap.toml.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), configDir, configName)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, configDir, configName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("socket", "")

	v.SetDefault("engine.interval", DefaultInterval)
	v.SetDefault("engine.refresh_interval", DefaultRefreshInterval)

	v.SetDefault("hardware.ddcutil", DefaultDDCUtil)
	v.SetDefault("hardware.ddc_timeout", DefaultDDCTimeout)
	v.SetDefault("hardware.backlight_root", DefaultBacklightRoot)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "")

	global := monitor.DefaultGlobalSettings()
	v.SetDefault("global.inactivity_limit", global.InactivityLimit)
	v.SetDefault("global.hotkey", global.Hotkey)
	v.SetDefault("global.awake_mode", global.AwakeMode)
	v.SetDefault("global.fade_time", global.FadeTime)
	v.SetDefault("global.fade_steps", global.FadeSteps)
}

// Load resolves the configuration. Precedence, highest first: flags that
// were set, environment, the settings file, defaults. A missing settings
// file is not an error.
func Load(fs *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, errFactory.Wrap(ErrBindFlags, err)
			}
		}
	}

	path := o.configPath
	if path == "" {
		path = v.GetString("config")
	}
	if path == "" {
		path = DefaultPath()
	}

	v.SetConfigFile(path)
	v.SetConfigType(configType)
	if err := readFile(v); err != nil {
		return nil, err
	}

	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	doc, err := raw.document()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Path:            path,
		LogLevel:        raw.LogLevel,
		Debug:           raw.Debug,
		Verbose:         raw.Verbose,
		Socket:          raw.Socket,
		Interval:        raw.Engine.Interval,
		RefreshInterval: raw.Engine.RefreshInterval,
		DDCUtil:         raw.Hardware.DDCUtil,
		DDCTimeout:      raw.Hardware.DDCTimeout,
		BacklightRoot:   raw.Hardware.BacklightRoot,
		HistoryEnabled:  raw.History.Enabled,
		HistoryPath:     raw.History.Path,
		Settings:        doc,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readFile reads the configured file, treating a missing file as empty.
func readFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return nil
		}
		return errors.New().WithData(ErrReadConfig, struct {
			Path  string
			Error string
		}{
			Path:  v.ConfigFileUsed(),
			Error: err.Error(),
		})
	}
	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "engine interval must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "refresh interval must be positive")
	}
	if c.DDCTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "ddc timeout must be positive")
	}
	if err := c.Settings.Global.Validate(); err != nil {
		return errFactory.Wrap(ErrInvalidConfig, err)
	}
	for id, s := range c.Settings.Monitors {
		if err := s.Validate(); err != nil {
			return errFactory.Wrap(ErrInvalidConfig, err).WithMessage("monitor " + string(id))
		}
	}
	return nil
}

// Level resolves --debug and --verbose against the configured level.
func (c *Config) Level() logger.LogLevel {
	switch {
	case c.Debug:
		return logger.DebugLevel
	case c.Verbose:
		return logger.InfoLevel
	}
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.InfoLevel
	}
	return level
}
