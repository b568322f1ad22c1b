package rosz

import (
	"fmt"
)

// ErrorCode classifies errors returned by this package
type ErrorCode int32

const (
	// ErrorCodeSuccess indicates the operation completed successfully
	ErrorCodeSuccess ErrorCode = 0

	// ErrorCodeTransport indicates the pub/sub session failed an operation
	ErrorCodeTransport ErrorCode = -1

	// ErrorCodeInvalidName indicates a topic, node or namespace name is invalid
	ErrorCodeInvalidName ErrorCode = -2

	// ErrorCodeSessionClosed indicates the context or its session is closed
	ErrorCodeSessionClosed ErrorCode = -3

	// ErrorCodePublishFailed indicates message publishing failed
	ErrorCodePublishFailed ErrorCode = -4

	// ErrorCodeSerializationFailed indicates CDR serialization failed
	ErrorCodeSerializationFailed ErrorCode = -5

	// ErrorCodeSubscribeFailed indicates subscriber creation failed
	ErrorCodeSubscribeFailed ErrorCode = -6

	// ErrorCodeNodeCreationFailed indicates node creation failed
	ErrorCodeNodeCreationFailed ErrorCode = -7

	// ErrorCodeContextCreationFailed indicates context creation failed
	ErrorCodeContextCreationFailed ErrorCode = -8

	// ErrorCodeDeserializationFailed indicates CDR deserialization failed
	ErrorCodeDeserializationFailed ErrorCode = -9

	// ErrorCodeBuildFailed indicates a builder failed to construct the entity
	ErrorCodeBuildFailed ErrorCode = -10

	// ErrorCodeServiceNotAvailable indicates no server answered a call
	ErrorCodeServiceNotAvailable ErrorCode = -11

	// ErrorCodeTimeout indicates an operation did not finish in time
	ErrorCodeTimeout ErrorCode = -12

	// ErrorCodeChannelClosed indicates a receive on a closed subscriber or server
	ErrorCodeChannelClosed ErrorCode = -13

	// ErrorCodeInvalidConfig indicates an invalid configuration or argument
	ErrorCodeInvalidConfig ErrorCode = -14

	// ErrorCodeMissingAttachment indicates a reply carried no attachment
	ErrorCodeMissingAttachment ErrorCode = -15

	// ErrorCodeInvalidAttachment indicates an attachment could not be decoded
	ErrorCodeInvalidAttachment ErrorCode = -16

	// ErrorCodeResponderUsed indicates a responder was used twice
	ErrorCodeResponderUsed ErrorCode = -17

	// ErrorCodeNotImplemented indicates an unsupported feature
	ErrorCodeNotImplemented ErrorCode = -18

	// ErrorCodeParameterRejected indicates a parameter declaration or update was refused
	ErrorCodeParameterRejected ErrorCode = -19

	// ErrorCodeUnknown indicates an unknown error occurred
	ErrorCodeUnknown ErrorCode = -100
)

// RoszError is a structured error carrying a code and an optional cause
type RoszError struct {
	code  ErrorCode
	msg   string
	cause error
}

// Error implements the error interface
func (e RoszError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (code: %d): %v", e.msg, e.code, e.cause)
	}
	return fmt.Sprintf("%s (code: %d)", e.msg, e.code)
}

// Code returns the error code
func (e RoszError) Code() ErrorCode {
	return e.code
}

// Message returns the error message without the code
func (e RoszError) Message() string {
	return e.msg
}

// Unwrap returns the underlying cause, if any
func (e RoszError) Unwrap() error {
	return e.cause
}

// NewRoszError creates a new RoszError with the given code and message
func NewRoszError(code ErrorCode, msg string) RoszError {
	return RoszError{code: code, msg: msg}
}

// wrapError creates a RoszError with a cause. A nil cause yields nil.
func wrapError(code ErrorCode, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return RoszError{code: code, msg: fmt.Sprintf(format, args...), cause: cause}
}

// Is reports whether target matches this error by comparing error codes.
// This enables errors.Is() support for RoszError.
// Uses direct type assertion (not errors.As) to avoid recursive chain walking.
func (e RoszError) Is(target error) bool {
	t, ok := target.(RoszError)
	if ok {
		return e.code == t.code
	}
	return false
}

// Sentinel errors for common failure modes
var (
	// ErrBuildFailed is returned when a builder's Build() call fails.
	// Use errors.Is(err, rosz.ErrBuildFailed) to detect construction failures.
	ErrBuildFailed = NewRoszError(ErrorCodeBuildFailed, "failed to build entity")

	ErrTransport           = NewRoszError(ErrorCodeTransport, "transport error")
	ErrInvalidName         = NewRoszError(ErrorCodeInvalidName, "invalid name")
	ErrContextClosed       = NewRoszError(ErrorCodeSessionClosed, "context closed")
	ErrPublishFailed       = NewRoszError(ErrorCodePublishFailed, "publish failed")
	ErrSerialization       = NewRoszError(ErrorCodeSerializationFailed, "serialization failed")
	ErrDeserialization     = NewRoszError(ErrorCodeDeserializationFailed, "deserialization failed")
	ErrServiceNotAvailable = NewRoszError(ErrorCodeServiceNotAvailable, "service not available")
	ErrTimeout             = NewRoszError(ErrorCodeTimeout, "timeout")
	ErrChannelClosed       = NewRoszError(ErrorCodeChannelClosed, "channel closed")
	ErrInvalidConfig       = NewRoszError(ErrorCodeInvalidConfig, "invalid configuration")
	ErrMissingAttachment   = NewRoszError(ErrorCodeMissingAttachment, "missing attachment")
	ErrInvalidAttachment   = NewRoszError(ErrorCodeInvalidAttachment, "invalid attachment")
	ErrResponderUsed       = NewRoszError(ErrorCodeResponderUsed, "responder already used")
	ErrNotImplemented      = NewRoszError(ErrorCodeNotImplemented, "not implemented")
	ErrParameterRejected   = NewRoszError(ErrorCodeParameterRejected, "parameter rejected")
)
