package hotkey

import "codeberg.org/mutker/monitornap/internal/errors"

const (
	ErrInvalidBinding = errors.ErrorCode("hotkey_invalid_binding")
	ErrNoKeycode      = errors.ErrorCode("hotkey_no_keycode")
)
