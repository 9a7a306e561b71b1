package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected by the engine.
//
// Runtime errors include:
//   - Malformed signal: payload is not an object or lacks the element key
//   - Poll failure: the remote call failed (network, non-2xx, bad body)
//   - Lifecycle misuse: Start while running, Flush while stopped
//   - Invalid descriptor: a descriptor the router cannot dispatch
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Event is the bus event (descriptor name) involved, if any.
	Event string

	// Element is the element id involved, if any.
	Element string

	// PollID identifies the failed poll (poll errors only).
	PollID string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMalformedSignal indicates a signal payload could not be resolved.
	ErrCodeMalformedSignal RuntimeErrorCode = "MALFORMED_SIGNAL"

	// ErrCodePollFailed indicates the remote call of a poll failed.
	ErrCodePollFailed RuntimeErrorCode = "POLL_FAILED"

	// ErrCodeAlreadyRunning indicates Start was called on a running engine.
	ErrCodeAlreadyRunning RuntimeErrorCode = "ALREADY_RUNNING"

	// ErrCodeNotRunning indicates an operation that needs a running engine.
	ErrCodeNotRunning RuntimeErrorCode = "NOT_RUNNING"

	// ErrCodeInvalidDescriptor indicates a descriptor failed validation.
	ErrCodeInvalidDescriptor RuntimeErrorCode = "INVALID_DESCRIPTOR"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Event != "" && e.Element != "":
		msg += fmt.Sprintf(" (event=%s, element=%s)", e.Event, e.Element)
	case e.Event != "":
		msg += fmt.Sprintf(" (event=%s)", e.Event)
	case e.PollID != "":
		msg += fmt.Sprintf(" (poll=%s)", e.PollID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsMalformedSignal returns true if err is a malformed signal error.
// Uses errors.As to handle wrapped errors.
func IsMalformedSignal(err error) bool {
	return hasCode(err, ErrCodeMalformedSignal)
}

// IsPollError returns true if err is a poll failure.
func IsPollError(err error) bool {
	return hasCode(err, ErrCodePollFailed)
}

// IsAlreadyRunning returns true if err reports a second Start.
func IsAlreadyRunning(err error) bool {
	return hasCode(err, ErrCodeAlreadyRunning)
}

// IsNotRunning returns true if err reports a stopped engine.
func IsNotRunning(err error) bool {
	return hasCode(err, ErrCodeNotRunning)
}

// NewMalformedSignalError creates a RuntimeError for an unusable payload.
func NewMalformedSignalError(event, reason string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMalformedSignal,
		Message: reason,
		Event:   event,
	}
}

// NewPollError creates a RuntimeError for a failed remote call.
func NewPollError(pollID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePollFailed,
		Message: "remote call failed",
		PollID:  pollID,
		Err:     cause,
	}
}

// NewInvalidDescriptorError creates a RuntimeError for a rejected descriptor.
func NewInvalidDescriptorError(event, reason string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidDescriptor,
		Message: reason,
		Event:   event,
	}
}
