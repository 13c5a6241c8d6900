package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var jsonNull = []byte("null")

// Decode parses one client frame into a *JoinSession, *ContentChange or
// *CursorMove. Errors are always *DecodeError.
func Decode(frame []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, &DecodeError{Code: CodeMalformed, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if env.Event == "" {
		return nil, &DecodeError{Code: CodeMalformed, Err: fmt.Errorf("%w: no event name", ErrMalformed)}
	}

	var msg Message
	var required []string
	switch env.Event {
	case EventJoinSession:
		msg = &JoinSession{}
		required = []string{"sessionId", "userName", "userColor"}
	case EventContentChange:
		msg = &ContentChange{}
		required = []string{"sessionId", "content", "cursorPosition"}
	case EventCursorMove:
		msg = &CursorMove{}
		required = []string{"sessionId", "cursorPosition"}
	default:
		return nil, &DecodeError{Event: env.Event, Code: CodeUnknownEvent, Err: ErrUnknownEvent}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &fields); err != nil || fields == nil {
		return nil, &DecodeError{Event: env.Event, Code: CodeMalformed, Err: fmt.Errorf("%w: data must be an object", ErrMalformed)}
	}
	for _, key := range required {
		if !present(fields, key) {
			return nil, &DecodeError{Event: env.Event, Code: CodeMissingField, Field: key, Err: ErrMissingField}
		}
	}

	if err := json.Unmarshal(env.Data, msg); err != nil {
		field := ""
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			field = te.Field
		}
		return nil, &DecodeError{Event: env.Event, Code: CodeInvalidField, Field: field, Err: fmt.Errorf("%w: %v", ErrInvalidField, err)}
	}

	if err := validate(msg); err != nil {
		err.Event = env.Event
		return nil, err
	}
	return msg, nil
}

// Encode builds a server frame for event with the given payload.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func validate(msg Message) *DecodeError {
	var sessionID string
	var start, end *int
	switch m := msg.(type) {
	case *JoinSession:
		sessionID = m.SessionID
	case *ContentChange:
		sessionID, start, end = m.SessionID, m.SelectionStart, m.SelectionEnd
	case *CursorMove:
		sessionID, start, end = m.SessionID, m.SelectionStart, m.SelectionEnd
	}

	if sessionID == "" {
		return &DecodeError{Code: CodeInvalidField, Field: "sessionId", Err: fmt.Errorf("%w: must not be empty", ErrInvalidField)}
	}

	// Selection bounds travel as a pair.
	if start != nil && end == nil {
		return &DecodeError{Code: CodeMissingField, Field: "selectionEnd", Err: ErrMissingField}
	}
	if end != nil && start == nil {
		return &DecodeError{Code: CodeMissingField, Field: "selectionStart", Err: ErrMissingField}
	}
	return nil
}

func present(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}
