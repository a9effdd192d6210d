package hardware

import "codeberg.org/mutker/monitornap/internal/errors"

const (
	ErrReadBrightness  = errors.ErrorCode("hardware_read_brightness_failed")
	ErrWriteBrightness = errors.ErrorCode("hardware_write_brightness_failed")
	ErrParseOutput     = errors.ErrorCode("hardware_parse_output_failed")
	ErrNoBacklight     = errors.ErrorCode("hardware_no_backlight")
)

// unsupportedMarkers are ddcutil diagnostics meaning the display cannot be
// driven over DDC/CI at all, as opposed to a transient bus error.
var unsupportedMarkers = []string{
	"Display not found",
	"Invalid display",
	"DDC communication failed",
	"does not support DDC",
	"No monitor detected",
	"Unsupported feature",
}
