package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrWriteConfig     ErrorCode = "write_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Dimming errors
	ErrProbeFailure       ErrorCode = "probe_failure"
	ErrUnsupportedDevice  ErrorCode = "unsupported_device"
	ErrOverlayFailure     ErrorCode = "overlay_failure"
	ErrHotkeyRegistration ErrorCode = "hotkey_registration_failed"
	ErrUnknownMonitor     ErrorCode = "unknown_monitor"
	ErrEnumerationFailed  ErrorCode = "enumeration_failed"

	// Operation errors
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrNotImplemented:     "Operation not implemented",
	ErrUnavailable:        "Service unavailable",
	ErrAlreadyRunning:     "Another instance is already running",
	ErrInvalidConfig:      "Invalid configuration",
	ErrReadConfig:         "Failed to read configuration",
	ErrWriteConfig:        "Failed to write configuration",
	ErrBindFlags:          "Failed to bind flags",
	ErrInvalidInterval:    "Invalid interval value",
	ErrInvalidLogLevel:    "Invalid log level",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrProbeFailure:       "Failed to sample monitor activity",
	ErrUnsupportedDevice:  "Monitor does not support hardware dimming",
	ErrOverlayFailure:     "Failed to show dimming overlay",
	ErrHotkeyRegistration: "Failed to register global hotkey",
	ErrUnknownMonitor:     "Unknown monitor",
	ErrEnumerationFailed:  "Failed to enumerate monitors",
	ErrOperationFailed:    "Operation failed",
	ErrTimeout:            "Operation timed out",
	ErrInvalidOperation:   "Invalid operation",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
