package hardware

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/monitor"
)

const DefaultBacklightRoot = "/sys/class/backlight"

// Backlight drives built-in panels through the kernel backlight class.
// Without write permission on the brightness file the device counts as
// unsupported.
type Backlight struct {
	root string
}

func NewBacklight(root string) *Backlight {
	if root == "" {
		root = DefaultBacklightRoot
	}
	return &Backlight{root: root}
}

func (b *Backlight) Brightness(_ context.Context, _ monitor.Monitor) (Brightness, error) {
	errFactory := errors.New()

	dir, err := b.device()
	if err != nil {
		return Brightness{}, err
	}

	current, err := readIntFile(filepath.Join(dir, "brightness"))
	if err != nil {
		return Brightness{}, errFactory.Wrap(ErrReadBrightness, err)
	}
	maxValue, err := readIntFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return Brightness{}, errFactory.Wrap(ErrReadBrightness, err)
	}

	return Brightness{Current: current, Max: maxValue}, nil
}

func (b *Backlight) SetBrightness(_ context.Context, _ monitor.Monitor, value int) error {
	errFactory := errors.New()

	dir, err := b.device()
	if err != nil {
		return err
	}

	err = os.WriteFile(filepath.Join(dir, "brightness"), []byte(strconv.Itoa(value)), 0o644)
	if stderrors.Is(err, fs.ErrPermission) {
		return errFactory.Wrap(errors.ErrUnsupportedDevice, err)
	}
	if err != nil {
		return errFactory.Wrap(ErrWriteBrightness, err)
	}

	return nil
}

// device picks the first backlight device, which on laptops is the panel.
func (b *Backlight) device() (string, error) {
	errFactory := errors.New()

	matches, err := filepath.Glob(filepath.Join(b.root, "*"))
	if err != nil {
		return "", errFactory.Wrap(ErrNoBacklight, fmt.Errorf("glob backlight: %w", err))
	}
	if len(matches) == 0 {
		return "", errFactory.Wrap(errors.ErrUnsupportedDevice, fmt.Errorf("no backlight device in %s", b.root))
	}

	return matches[0], nil
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
