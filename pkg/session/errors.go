package session

import "errors"

var (
	// ErrEmptySessionID is returned when a join names no session.
	ErrEmptySessionID = errors.New("session: empty session id")

	// ErrEmptyConnID is returned when a participant has no connection id.
	ErrEmptyConnID = errors.New("session: empty connection id")

	// ErrClosed is returned by Join after the Store has been closed.
	ErrClosed = errors.New("session: store closed")
)
