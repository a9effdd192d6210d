package history

import (
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
)

const (
	defaultDirPerm       = 0o755
	defaultBatchSize     = 32
	defaultMaxPending    = 4096
	defaultFlushInterval = 30 * time.Second
)

type Config struct {
	DBPath        string
	Enabled       bool
	BatchSize     int
	FlushInterval time.Duration
	// MaxPending caps the records held in memory while the database cannot
	// be written. The oldest are dropped first.
	MaxPending int
}

// DefaultConfig keeps history disabled; the database lives under
// $XDG_STATE_HOME when enabled.
func DefaultConfig() Config {
	return Config{
		DBPath:        DefaultDBPath(),
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
		MaxPending:    defaultMaxPending,
	}
}

func DefaultDBPath() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "monitornap", "history.db")
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "monitornap", "history.db")
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "history batch size must be at least 1")
	}
	if c.MaxPending < c.BatchSize {
		return errFactory.WithData(errors.ErrInvalidConfig, "history max pending must not be below the batch size")
	}
	if c.FlushInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, "history flush interval must be positive")
	}
	return nil
}
