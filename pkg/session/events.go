package session

// EventKind identifies the mutation an Event describes.
type EventKind int

const (
	// ParticipantJoined is emitted after a participant is registered.
	ParticipantJoined EventKind = iota + 1

	// ContentUpdated is emitted after the content is replaced.
	ContentUpdated

	// CursorUpdated is emitted after a cursor moves without a content change.
	CursorUpdated

	// ParticipantLeft is emitted after a participant and its cursor are removed.
	ParticipantLeft
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case ParticipantJoined:
		return "participant_joined"
	case ContentUpdated:
		return "content_updated"
	case CursorUpdated:
		return "cursor_updated"
	case ParticipantLeft:
		return "participant_left"
	default:
		return "unknown"
	}
}

// Event describes one applied mutation.
type Event struct {
	Kind      EventKind
	SessionID string

	// Origin is the connection id that caused the mutation.
	Origin string

	// Version is the session version after the mutation.
	Version uint64

	// Participant is set for ParticipantJoined.
	Participant Participant

	// Content is set for ContentUpdated.
	Content string

	// Cursor is set for CursorUpdated, and for ContentUpdated when the
	// sender still had a participant entry.
	Cursor *Cursor
}

// Notifier receives Events. Notify is called with the session's mutex held.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

// Notify calls f(ev).
func (f NotifierFunc) Notify(ev Event) {
	f(ev)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
