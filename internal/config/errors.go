package config

import "codeberg.org/mutker/monitornap/internal/errors"

const (
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrReadConfig    = errors.ErrReadConfig
	ErrWriteConfig   = errors.ErrWriteConfig
	ErrBindFlags     = errors.ErrBindFlags
	ErrDuplicateID   = errors.ErrorCode("config_duplicate_monitor_id")
)
