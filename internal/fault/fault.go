package fault

import (
	"errors"
	"fmt"
)

// Code classifies a bridge error. Codes are stable strings so they can
// travel over the wire and show up in transcripts unchanged.
type Code string

const (
	AuthenticationRequired Code = "authentication-required"
	InvalidArgument        Code = "invalid-argument"
	PermissionDenied       Code = "permission-denied"
	ConnectionFailed       Code = "connection-failed"
	ConnectionTimeout      Code = "connection-timeout"
	ResponseTimeout        Code = "response-timeout"
	ToolExecutionFailed    Code = "tool-execution-failed"
	Internal               Code = "internal"
)

// Error is a classified error. Use New/Errorf/Wrap to construct.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without losing it.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), cause: err}
}

// CodeOf extracts the classification of err, or Internal when err carries none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return Internal
}

// FromRemote maps an error code from the agent service or document store
// onto the local taxonomy. Unknown codes collapse to Internal.
func FromRemote(code, message string) *Error {
	switch code {
	case "unauthenticated":
		return New(AuthenticationRequired, message)
	case "invalid-argument":
		return New(InvalidArgument, message)
	case "permission-denied":
		return New(PermissionDenied, message)
	default:
		return New(Internal, message)
	}
}
