package server

import (
	"errors"
	"fmt"

	"github.com/collabmd/collabmd/pkg/protocol"
	"github.com/collabmd/collabmd/pkg/session"
)

// Sentinel errors for connection and server error conditions.
var (
	// ErrConnectionClosed is returned when an operation is attempted on a closed connection.
	ErrConnectionClosed = errors.New("server: connection closed")

	// ErrNotJoined is returned when a message requires a joined connection.
	ErrNotJoined = errors.New("server: connection has not joined a session")

	// ErrAlreadyJoined is returned for a second join on one connection.
	ErrAlreadyJoined = errors.New("server: connection already joined a session")

	// ErrSessionMismatch is returned when a message names a session other
	// than the one the connection joined.
	ErrSessionMismatch = errors.New("server: message addresses another session")

	// ErrSessionNotFound is returned by the admin API for an unknown session id.
	ErrSessionNotFound = errors.New("server: session not found")
)

// ConnError wraps an error with connection context for debugging.
type ConnError struct {
	ConnID string
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	if e.ConnID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: conn %s: %s: %v", e.ConnID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// NewConnError creates a new ConnError.
func NewConnError(connID, op string, err error) *ConnError {
	return &ConnError{
		ConnID: connID,
		Op:     op,
		Err:    err,
	}
}

// HandlerError wraps a panic that occurred while handling a client message.
type HandlerError struct {
	ConnID string
	Event  string
	Panic  any
	Stack  []byte
}

// Error returns the error message.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("server: handler panic on conn %s, event %s: %v",
		e.ConnID, e.Event, e.Panic)
}

// errorCode maps a handler error to the code sent to the client.
func errorCode(err error) protocol.Code {
	var de *protocol.DecodeError
	switch {
	case errors.As(err, &de):
		return de.Code
	case errors.Is(err, ErrNotJoined):
		return protocol.CodeNotJoined
	case errors.Is(err, ErrAlreadyJoined):
		return protocol.CodeAlreadyJoined
	case errors.Is(err, ErrSessionMismatch):
		return protocol.CodeSessionMismatch
	case errors.Is(err, session.ErrEmptySessionID):
		return protocol.CodeInvalidField
	default:
		return protocol.CodeInternal
	}
}
