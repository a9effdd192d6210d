// Package pid guards against a second daemon for the same session.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/monitornap/internal/errors"
)

const pidFile = "monitornap.pid"

// DefaultPath places the PID file next to the control socket.
func DefaultPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, pidFile)
	}
	return filepath.Join(os.TempDir(), "monitornap-"+strconv.Itoa(os.Getuid())+".pid")
}

// Write records the current process ID at path. It fails with
// ErrAlreadyRunning while the process named in an existing file is alive; a
// stale or unreadable file is overwritten.
func Write(path string) error {
	errFactory := errors.New()

	if running, err := alive(path); err != nil {
		return err
	} else if running {
		return errFactory.WithData(errors.ErrAlreadyRunning, path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove deletes the PID file if it still names this process.
func Remove(path string) error {
	errFactory := errors.New()

	pid, err := read(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(path string) (bool, error) {
	pid, err := read(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			return false, nil
		}
		return false, errors.New().Wrap(errors.ErrInternal, err)
	}
	if pid == os.Getpid() {
		return false, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM), nil
}

func read(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}
