package protocol

import (
	"errors"
	"fmt"
)

// Code identifies why a client message was rejected.
type Code string

const (
	CodeMalformed       Code = "malformed"        // Not a JSON envelope
	CodeUnknownEvent    Code = "unknown-event"    // Event name not recognized
	CodeMissingField    Code = "missing-field"    // Required key absent
	CodeInvalidField    Code = "invalid-field"    // Key present with wrong type or value
	CodeNotJoined       Code = "not-joined"       // Message requires a joined connection
	CodeAlreadyJoined   Code = "already-joined"   // Second join on one connection
	CodeSessionMismatch Code = "session-mismatch" // sessionId differs from the joined one
	CodeInternal        Code = "internal"         // Handler failure
)

var (
	// ErrMalformed is wrapped when a frame is not a valid envelope.
	ErrMalformed = errors.New("protocol: malformed message")

	// ErrUnknownEvent is wrapped when the event name is not recognized.
	ErrUnknownEvent = errors.New("protocol: unknown event")

	// ErrMissingField is wrapped when a required key is absent.
	ErrMissingField = errors.New("protocol: missing field")

	// ErrInvalidField is wrapped when a key has the wrong type or value.
	ErrInvalidField = errors.New("protocol: invalid field")
)

// DecodeError describes a client message that could not be decoded.
type DecodeError struct {
	Event string
	Code  Code
	Field string
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	switch {
	case e.Field != "" && e.Event != "":
		return fmt.Sprintf("%s: %s: %v", e.Event, e.Field, e.Err)
	case e.Event != "":
		return fmt.Sprintf("%s: %v", e.Event, e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewError builds the payload of an error event.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}
