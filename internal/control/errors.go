package control

import "codeberg.org/mutker/monitornap/internal/errors"

const (
	ErrListen         = errors.ErrorCode("control_listen_failed")
	ErrDaemonNotFound = errors.ErrorCode("control_daemon_not_running")
	ErrBadResponse    = errors.ErrorCode("control_bad_response")
)
