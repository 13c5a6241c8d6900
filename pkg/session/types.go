package session

import "time"

// DefaultWelcomeContent is the text of a freshly created session.
const DefaultWelcomeContent = "# Welcome to Collaborative Markdown Editor\n\nStart editing..."

// Participant is one connected user within a session.
type Participant struct {
	// ID is the connection id. It is stable for the connection's lifetime.
	ID string

	// Name is the client-supplied display name. Not unique, may be empty.
	Name string

	// Color is the client-supplied display color, treated as opaque.
	Color string
}

// Range is a selection as character offsets into the content.
// Start is not guaranteed to be less than or equal to End.
type Range struct {
	Start int
	End   int
}

// Caret is the position and optional selection reported by a client.
type Caret struct {
	Position  int
	Selection *Range
}

// Cursor is the last reported caret of one participant.
//
// UserName and UserColor are copied from the Participant at write time. They
// are not refreshed if the participant changes later.
type Cursor struct {
	UserID    string
	UserName  string
	UserColor string
	Position  int
	Selection *Range
}

func (c Cursor) clone() Cursor {
	if c.Selection != nil {
		sel := *c.Selection
		c.Selection = &sel
	}
	return c
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	SessionID    string
	Content      string
	Participants []Participant
	Cursors      []Cursor

	// Version is the number of mutations applied to the session so far.
	Version uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary describes a session without its content.
type Summary struct {
	SessionID     string
	Participants  int
	Cursors       int
	ContentLength int
	Version       uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	EmptySince    time.Time
}

// ContentResult is the outcome of a content update.
type ContentResult struct {
	Content string

	// Cursor is nil when the sender is no longer a participant.
	Cursor *Cursor

	Version uint64
}

// StoreStats holds store-wide counters.
type StoreStats struct {
	Active       int
	TotalCreated uint64
	TotalEvicted uint64
	Peak         int
}
