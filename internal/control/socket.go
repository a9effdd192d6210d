package control

import (
	"fmt"
	"os"
	"path/filepath"
)

const socketName = "monitornap.sock"

// DefaultSocketPath is $XDG_RUNTIME_DIR/monitornap.sock, falling back to a
// per-user name in the temp directory.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("monitornap-%d.sock", os.Getuid()))
}
