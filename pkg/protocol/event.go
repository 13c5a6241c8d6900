package protocol

import "encoding/json"

// Event names.
const (
	EventJoinSession   = "join-session"
	EventContentChange = "content-change"
	EventCursorMove    = "cursor-move"

	EventSessionState   = "session-state"
	EventUserJoined     = "user-joined"
	EventContentUpdated = "content-updated"
	EventCursorUpdated  = "cursor-updated"
	EventUserLeft       = "user-left"
	EventError          = "error"
)

// Envelope is the outer JSON object of every frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Message is a decoded client message.
type Message interface {
	EventName() string
}

// JoinSession asks to join a session, creating it if needed.
type JoinSession struct {
	SessionID string `json:"sessionId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
}

// EventName implements Message.
func (*JoinSession) EventName() string { return EventJoinSession }

// ContentChange replaces the whole document and moves the sender's cursor.
type ContentChange struct {
	SessionID      string `json:"sessionId"`
	Content        string `json:"content"`
	CursorPosition int    `json:"cursorPosition"`
	SelectionStart *int   `json:"selectionStart,omitempty"`
	SelectionEnd   *int   `json:"selectionEnd,omitempty"`
}

// EventName implements Message.
func (*ContentChange) EventName() string { return EventContentChange }

// CursorMove moves the sender's cursor without changing content.
type CursorMove struct {
	SessionID      string `json:"sessionId"`
	CursorPosition int    `json:"cursorPosition"`
	SelectionStart *int   `json:"selectionStart,omitempty"`
	SelectionEnd   *int   `json:"selectionEnd,omitempty"`
}

// EventName implements Message.
func (*CursorMove) EventName() string { return EventCursorMove }

// User is a participant as seen by clients.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Cursor is a participant's caret as seen by clients.
type Cursor struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	UserColor      string `json:"userColor"`
	Position       int    `json:"position"`
	SelectionStart *int   `json:"selectionStart,omitempty"`
	SelectionEnd   *int   `json:"selectionEnd,omitempty"`
}

// SessionState is the snapshot sent to a joiner.
type SessionState struct {
	Content string   `json:"content"`
	Users   []User   `json:"users"`
	Cursors []Cursor `json:"cursors"`
}

// ContentUpdated is broadcast after a content change.
type ContentUpdated struct {
	Content string  `json:"content"`
	Cursor  *Cursor `json:"cursor,omitempty"`
}

// Error is sent to a client whose message was rejected.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}
