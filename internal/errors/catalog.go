package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a standardized error code for engine operations
type ErrorCode string

// Error codes surfaced by the bridge
const (
	// Caller errors, raised before any request reaches the engine
	ErrorCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// Engine errors
	ErrorCodeEngineOperation   ErrorCode = "ENGINE_OPERATION_FAILED"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// Build context errors
	ErrorCodeBuildContextInvalid ErrorCode = "BUILD_CONTEXT_INVALID"

	// Queue errors
	ErrorCodeTaskPayloadInvalid ErrorCode = "TASK_PAYLOAD_INVALID"
)

// Error messages map
var errorMessages = map[ErrorCode]string{
	ErrorCodeInvalidArgument:     "Invalid argument.",
	ErrorCodeEngineOperation:     "Docker API error.",
	ErrorCodeEngineUnavailable:   "Docker engine is not reachable.",
	ErrorCodeBuildContextInvalid: "Build context could not be prepared.",
	ErrorCodeTaskPayloadInvalid:  "Task payload could not be decoded.",
}

// BridgeError represents a structured error with code and message
type BridgeError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"` // Additional context for debugging
	Err     error     `json:"-"`                 // Original error (not serialized)
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// New creates a new BridgeError with the given code
func New(code ErrorCode, details ...string) *BridgeError {
	err := &BridgeError{
		Code:    code,
		Message: GetMessage(code),
	}

	if len(details) > 0 {
		err.Details = details[0]
	}

	return err
}

// Wrap wraps an existing error with a BridgeError code.
// The wrapped error's text is appended to the details so callers that only
// print the error still see what the engine reported.
func Wrap(code ErrorCode, err error, details ...string) *BridgeError {
	bridgeErr := New(code, details...)
	if err == nil {
		return bridgeErr
	}
	bridgeErr.Err = err
	if bridgeErr.Details == "" {
		bridgeErr.Details = err.Error()
	} else {
		bridgeErr.Details = fmt.Sprintf("%s:\n%s", bridgeErr.Details, err.Error())
	}
	return bridgeErr
}

// GetMessage returns the user-friendly message for an error code
func GetMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "An unknown error occurred."
}

// AsBridgeError finds the first BridgeError in err's chain
func AsBridgeError(err error) (*BridgeError, bool) {
	if err == nil {
		return nil, false
	}
	var bridgeErr *BridgeError
	if errors.As(err, &bridgeErr) {
		return bridgeErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code anywhere in its chain
func IsCode(err error, code ErrorCode) bool {
	bridgeErr, ok := AsBridgeError(err)
	return ok && bridgeErr.Code == code
}
