package display

import "codeberg.org/mutker/monitornap/internal/errors"

const (
	ErrRandRUnavailable = errors.ErrorCode("display_randr_unavailable")
	ErrResourcesFailed  = errors.ErrorCode("display_resources_failed")
	ErrOutputInfoFailed = errors.ErrorCode("display_output_info_failed")
)
