package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const defaultDirPerm = 0o755

// Store persists the settings document to the settings file and reports
// edits made to it by other programs.
type Store struct {
	path   string
	logger logger.Logger

	mu   sync.Mutex
	last monitor.Document
	// other holds file keys outside [global] and [[monitors]] so a save
	// keeps them.
	other map[string]any

	watcher *viper.Viper
}

func NewStore(path string, log logger.Logger) *Store {
	return &Store{path: path, logger: log}
}

func (s *Store) Path() string { return s.path }

// Exists reports whether the settings file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save writes doc, keeping every non-settings key already in the file.
func (s *Store) Save(doc monitor.Document) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.other == nil {
		other, err := s.readOther()
		if err != nil {
			return err
		}
		s.other = other
	}

	w := viper.New()
	w.SetConfigType(configType)
	for key, value := range s.other {
		w.Set(key, value)
	}
	w.Set("global.inactivity_limit", doc.Global.InactivityLimit.String())
	w.Set("global.hotkey", doc.Global.Hotkey)
	w.Set("global.awake_mode", doc.Global.AwakeMode)
	w.Set("global.fade_time", doc.Global.FadeTime.String())
	w.Set("global.fade_steps", doc.Global.FadeSteps)
	w.Set("monitors", monitorTables(doc))

	if err := os.MkdirAll(filepath.Dir(s.path), defaultDirPerm); err != nil {
		return errFactory.Wrap(ErrWriteConfig, err)
	}
	if err := w.WriteConfigAs(s.path); err != nil {
		return errFactory.WithData(ErrWriteConfig, struct {
			Path  string
			Error string
		}{
			Path:  s.path,
			Error: err.Error(),
		})
	}

	s.last = doc.Clone()
	s.logger.Debug().Str("path", s.path).Int("monitors", len(doc.Monitors)).Msg("Settings saved")

	return nil
}

// Load reads the settings document from the file.
func (s *Store) Load() (monitor.Document, error) {
	v, err := s.read()
	if err != nil {
		return monitor.Document{}, err
	}
	return decodeDocument(v)
}

// Watch calls fn with the new document whenever the file changes to
// something other than what was last saved. Unreadable or half-written files
// are skipped.
func (s *Store) Watch(fn func(monitor.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return
	}

	s.watcher = viper.New()
	s.watcher.SetConfigFile(s.path)
	s.watcher.SetConfigType(configType)
	s.watcher.OnConfigChange(func(e fsnotify.Event) {
		s.changed(e, fn)
	})
	s.watcher.WatchConfig()

	s.logger.Debug().Str("path", s.path).Msg("Watching settings file")
}

func (s *Store) changed(e fsnotify.Event, fn func(monitor.Document)) {
	v, err := s.read()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Ignoring unreadable settings file")
		return
	}
	if !v.InConfig("global") {
		return
	}
	doc, err := decodeDocument(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Ignoring invalid settings file")
		return
	}

	s.mu.Lock()
	if documentsEqual(doc, s.last) {
		s.mu.Unlock()
		return
	}
	s.last = doc.Clone()
	s.other = otherKeys(v)
	s.mu.Unlock()

	s.logger.Info().Str("path", s.path).Str("op", e.Op.String()).Msg("Settings file changed")
	fn(doc)
}

// read loads the file into a fresh viper instance with defaults applied.
func (s *Store) read() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(s.path)
	v.SetConfigType(configType)
	if err := readFile(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) readOther() (map[string]any, error) {
	if !s.Exists() {
		return map[string]any{}, nil
	}
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType(configType)
	if err := readFile(v); err != nil {
		return nil, err
	}
	return otherKeys(v), nil
}

// otherKeys returns the keys set in the file itself, excluding settings.
func otherKeys(v *viper.Viper) map[string]any {
	out := make(map[string]any)
	for _, key := range v.AllKeys() {
		if key == "monitors" || strings.HasPrefix(key, "global.") {
			continue
		}
		if v.InConfig(key) {
			out[key] = v.Get(key)
		}
	}
	return out
}

func decodeDocument(v *viper.Viper) (monitor.Document, error) {
	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		return monitor.Document{}, errors.New().Wrap(ErrInvalidConfig, err)
	}
	doc, err := raw.document()
	if err != nil {
		return monitor.Document{}, err
	}
	if err := doc.Global.Validate(); err != nil {
		return monitor.Document{}, errors.New().Wrap(ErrInvalidConfig, err)
	}
	return doc, nil
}

func documentsEqual(a, b monitor.Document) bool {
	if a.Global != b.Global || len(a.Monitors) != len(b.Monitors) {
		return false
	}
	for id, s := range a.Monitors {
		if other, ok := b.Monitors[id]; !ok || other != s {
			return false
		}
	}
	return true
}
