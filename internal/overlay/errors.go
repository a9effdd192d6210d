package overlay

import "codeberg.org/mutker/monitornap/internal/errors"

const (
	ErrShapeUnavailable = errors.ErrorCode("overlay_shape_unavailable")
	ErrCreateWindow     = errors.ErrorCode("overlay_create_window_failed")
)
