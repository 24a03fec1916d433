package errors

import "net/http"

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Runtime (sandbox backend) errors
// 21000-21999: Security policy errors
// 22000-22999: Container agent proxy & IPC errors
// 23000-23999: Session store errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Configuration (10400-10499)
	ConfigInvalid  ErrorCode = 10400
	ConfigNotFound ErrorCode = 10401

	// Cache / queue plumbing (10200-10299)
	CacheError   ErrorCode = 10200
	CacheMiss    ErrorCode = 10201
	QueueError   ErrorCode = 10210
	StorageError ErrorCode = 10220

	// ========== Runtime Errors (20000-20999) ==========

	RuntimeTimeout         ErrorCode = 20000
	RuntimeExecutionFailed ErrorCode = 20001
	RuntimeNotAvailable    ErrorCode = 20002
	RuntimeUnknown         ErrorCode = 20003

	// ========== Security Errors (21000-21999) ==========

	SecurityViolation ErrorCode = 21000
	MountBlocked      ErrorCode = 21001
	MountInvalid      ErrorCode = 21002
	MountNotAllowed   ErrorCode = 21003
	AllowlistInvalid  ErrorCode = 21004
	BinaryRejected    ErrorCode = 21005

	// ========== Proxy & IPC Errors (22000-22999) ==========

	ProxyAlreadyRunning ErrorCode = 22000
	BackendUnavailable  ErrorCode = 22001
	ContainerSpawn      ErrorCode = 22002
	ContainerIO         ErrorCode = 22003
	ContainerTimeout    ErrorCode = 22004
	ContainerExit       ErrorCode = 22005
	ResponseMalformed   ErrorCode = 22006

	// ========== Session Errors (23000-23999) ==========

	SessionNotFound    ErrorCode = 23000
	SessionCorrupted   ErrorCode = 23001
	SessionSaveFailed  ErrorCode = 23002
	SessionKeyMismatch ErrorCode = 23003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	ConfigInvalid:  "Invalid configuration",
	ConfigNotFound: "Configuration file not found",

	CacheError:   "Cache operation failed",
	CacheMiss:    "Cache miss",
	QueueError:   "Message queue operation failed",
	StorageError: "Object storage operation failed",

	RuntimeTimeout:         "Command timed out",
	RuntimeExecutionFailed: "Command execution failed",
	RuntimeNotAvailable:    "Runtime not available",
	RuntimeUnknown:         "Unknown runtime type",

	SecurityViolation: "Security violation",
	MountBlocked:      "Mount blocked by sensitive pattern",
	MountInvalid:      "Invalid mount specification",
	MountNotAllowed:   "Mount outside allowed roots",
	AllowlistInvalid:  "Mount allowlist is invalid",
	BinaryRejected:    "Container binary rejected",

	ProxyAlreadyRunning: "Container agent proxy already running",
	BackendUnavailable:  "No container backend available",
	ContainerSpawn:      "Failed to spawn container",
	ContainerIO:         "Container I/O failed",
	ContainerTimeout:    "Container timed out",
	ContainerExit:       "Container exited with non-zero status",
	ResponseMalformed:   "Malformed agent response",

	SessionNotFound:    "Session not found",
	SessionCorrupted:   "Session snapshot is corrupted",
	SessionSaveFailed:  "Failed to save session",
	SessionKeyMismatch: "Session key mismatch",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// IsSecurity reports whether the code belongs to the security range.
func (c ErrorCode) IsSecurity() bool {
	return c >= 21000 && c < 22000
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return http.StatusOK
	case c == NotFound, c == SessionNotFound:
		return http.StatusNotFound
	case c == InvalidParams, c == ConfigInvalid:
		return http.StatusBadRequest
	case c.IsSecurity():
		return http.StatusForbidden
	case c == Timeout, c == RuntimeTimeout, c == ContainerTimeout:
		return http.StatusGatewayTimeout
	case c == ServiceUnavailable, c == RuntimeNotAvailable, c == BackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
