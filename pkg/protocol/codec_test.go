package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeJoinSession(t *testing.T) {
	msg, err := Decode([]byte(`{"event":"join-session","data":{"sessionId":"abc123","userName":"Alice","userColor":"#f00"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	join, ok := msg.(*JoinSession)
	if !ok {
		t.Fatalf("got %T, want *JoinSession", msg)
	}
	if join.SessionID != "abc123" || join.UserName != "Alice" || join.UserColor != "#f00" {
		t.Errorf("JoinSession = %+v", join)
	}
	if join.EventName() != EventJoinSession {
		t.Errorf("EventName() = %q", join.EventName())
	}
}

func TestDecodeJoinSessionEmptyNameAllowed(t *testing.T) {
	msg, err := Decode([]byte(`{"event":"join-session","data":{"sessionId":"s","userName":"","userColor":""}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.(*JoinSession).UserName != "" {
		t.Error("empty user name should be kept as is")
	}
}

func TestDecodeContentChange(t *testing.T) {
	msg, err := Decode([]byte(`{"event":"content-change","data":{"sessionId":"s","content":"hello","cursorPosition":5,"selectionStart":1,"selectionEnd":3}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cc := msg.(*ContentChange)
	if cc.Content != "hello" || cc.CursorPosition != 5 {
		t.Errorf("ContentChange = %+v", cc)
	}
	if cc.SelectionStart == nil || *cc.SelectionStart != 1 || cc.SelectionEnd == nil || *cc.SelectionEnd != 3 {
		t.Errorf("selection = %v, %v", cc.SelectionStart, cc.SelectionEnd)
	}
}

func TestDecodeContentChangeEmptyContent(t *testing.T) {
	msg, err := Decode([]byte(`{"event":"content-change","data":{"sessionId":"s","content":"","cursorPosition":0}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cc := msg.(*ContentChange)
	if cc.Content != "" || cc.SelectionStart != nil {
		t.Errorf("ContentChange = %+v", cc)
	}
}

func TestDecodeCursorMoveNullSelection(t *testing.T) {
	msg, err := Decode([]byte(`{"event":"cursor-move","data":{"sessionId":"s","cursorPosition":7,"selectionStart":null,"selectionEnd":null}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cm := msg.(*CursorMove)
	if cm.CursorPosition != 7 || cm.SelectionStart != nil || cm.SelectionEnd != nil {
		t.Errorf("CursorMove = %+v", cm)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		code  Code
		field string
		is    error
	}{
		{"not json", `nope`, CodeMalformed, "", ErrMalformed},
		{"no event", `{"data":{}}`, CodeMalformed, "", ErrMalformed},
		{"data not object", `{"event":"cursor-move","data":[1]}`, CodeMalformed, "", ErrMalformed},
		{"data missing", `{"event":"cursor-move"}`, CodeMalformed, "", ErrMalformed},
		{"unknown event", `{"event":"delete-everything","data":{}}`, CodeUnknownEvent, "", ErrUnknownEvent},
		{"join without session", `{"event":"join-session","data":{"userName":"a","userColor":"b"}}`, CodeMissingField, "sessionId", ErrMissingField},
		{"join empty session", `{"event":"join-session","data":{"sessionId":"","userName":"a","userColor":"b"}}`, CodeInvalidField, "sessionId", ErrInvalidField},
		{"join without name", `{"event":"join-session","data":{"sessionId":"s","userColor":"b"}}`, CodeMissingField, "userName", ErrMissingField},
		{"join null color", `{"event":"join-session","data":{"sessionId":"s","userName":"a","userColor":null}}`, CodeMissingField, "userColor", ErrMissingField},
		{"content missing", `{"event":"content-change","data":{"sessionId":"s","cursorPosition":1}}`, CodeMissingField, "content", ErrMissingField},
		{"content without cursor", `{"event":"content-change","data":{"sessionId":"s","content":"x"}}`, CodeMissingField, "cursorPosition", ErrMissingField},
		{"content wrong type", `{"event":"content-change","data":{"sessionId":"s","content":42,"cursorPosition":1}}`, CodeInvalidField, "content", ErrInvalidField},
		{"cursor not a number", `{"event":"cursor-move","data":{"sessionId":"s","cursorPosition":"1"}}`, CodeInvalidField, "cursorPosition", ErrInvalidField},
		{"selection start only", `{"event":"cursor-move","data":{"sessionId":"s","cursorPosition":1,"selectionStart":0}}`, CodeMissingField, "selectionEnd", ErrMissingField},
		{"selection end only", `{"event":"content-change","data":{"sessionId":"s","content":"","cursorPosition":1,"selectionEnd":4}}`, CodeMissingField, "selectionStart", ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			if err == nil {
				t.Fatal("expected error")
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error %T is not *DecodeError", err)
			}
			if de.Code != tt.code {
				t.Errorf("Code = %q, want %q", de.Code, tt.code)
			}
			if de.Field != tt.field {
				t.Errorf("Field = %q, want %q", de.Field, tt.field)
			}
			if !errors.Is(err, tt.is) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.is)
			}
		})
	}
}

func TestEncodeSessionState(t *testing.T) {
	start, end := 2, 4
	frame, err := Encode(EventSessionState, SessionState{
		Content: "hi",
		Users:   []User{{ID: "a", Name: "Alice", Color: "red"}},
		Cursors: []Cursor{{UserID: "a", UserName: "Alice", UserColor: "red", Position: 1, SelectionStart: &start, SelectionEnd: &end}},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got struct {
		Event string `json:"event"`
		Data  struct {
			Content string           `json:"content"`
			Users   []map[string]any `json:"users"`
			Cursors []map[string]any `json:"cursors"`
		} `json:"data"`
	}
	if err := json.Unmarshal(frame, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Event != EventSessionState || got.Data.Content != "hi" {
		t.Errorf("frame = %s", frame)
	}
	if got.Data.Users[0]["id"] != "a" || got.Data.Users[0]["color"] != "red" {
		t.Errorf("users = %v", got.Data.Users)
	}
	if got.Data.Cursors[0]["selectionStart"] != float64(2) || got.Data.Cursors[0]["userId"] != "a" {
		t.Errorf("cursors = %v", got.Data.Cursors)
	}
}

func TestEncodeEmptyListsAreArrays(t *testing.T) {
	frame, err := Encode(EventSessionState, SessionState{Users: []User{}, Cursors: []Cursor{}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"event":"session-state","data":{"content":"","users":[],"cursors":[]}}`
	if string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}
}

func TestEncodeContentUpdatedWithoutCursor(t *testing.T) {
	frame, err := Encode(EventContentUpdated, ContentUpdated{Content: "x"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"event":"content-updated","data":{"content":"x"}}`
	if string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}
}

func TestEncodeCursorWithoutSelection(t *testing.T) {
	frame, err := Encode(EventCursorUpdated, Cursor{UserID: "a", Position: 3})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"event":"cursor-updated","data":{"userId":"a","userName":"","userColor":"","position":3}}`
	if string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}
}

func TestEncodeUserLeft(t *testing.T) {
	frame, err := Encode(EventUserLeft, "conn-1")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(frame) != `{"event":"user-left","data":"conn-1"}` {
		t.Errorf("frame = %s", frame)
	}
}
