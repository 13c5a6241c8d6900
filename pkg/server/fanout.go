package server

import (
	"context"

	"github.com/collabmd/collabmd/internal/logging"
	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/protocol"
	"github.com/collabmd/collabmd/pkg/session"
)

// notify publishes a store event to the session's topic. The store calls it
// with the session locked, so events of one session are published in
// mutation order.
func (s *Server) notify(ev session.Event) {
	event, payload := wireEvent(ev)
	if event == "" {
		return
	}

	frame, err := protocol.Encode(event, payload)
	if err != nil {
		s.logger.Error("encode event failed", "event", event, logging.SessionID(ev.SessionID), logging.Err(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	err = s.broker.Publish(ctx, ev.SessionID, broker.Message{
		Node:    s.nodeID,
		Origin:  ev.Origin,
		Version: ev.Version,
		Event:   event,
		Payload: frame,
	})
	if err != nil {
		s.counters.publishErrors.Add(1)
		s.metrics.publishErrors.Inc()
		s.logger.Warn("publish failed", "event", event, logging.SessionID(ev.SessionID), logging.Err(err))
		return
	}

	s.counters.broadcasts.Add(1)
	s.metrics.broadcastsTotal.WithLabelValues(event).Inc()
}

// wireEvent maps a store event to the server event sent to peers.
func wireEvent(ev session.Event) (string, any) {
	switch ev.Kind {
	case session.ParticipantJoined:
		return protocol.EventUserJoined, toUser(ev.Participant)
	case session.ContentUpdated:
		payload := protocol.ContentUpdated{Content: ev.Content}
		if ev.Cursor != nil {
			c := toCursor(*ev.Cursor)
			payload.Cursor = &c
		}
		return protocol.EventContentUpdated, payload
	case session.CursorUpdated:
		if ev.Cursor == nil {
			return "", nil
		}
		return protocol.EventCursorUpdated, toCursor(*ev.Cursor)
	case session.ParticipantLeft:
		return protocol.EventUserLeft, ev.Origin
	default:
		return "", nil
	}
}

func sessionState(snap session.Snapshot) protocol.SessionState {
	state := protocol.SessionState{
		Content: snap.Content,
		Users:   make([]protocol.User, 0, len(snap.Participants)),
		Cursors: make([]protocol.Cursor, 0, len(snap.Cursors)),
	}
	for _, p := range snap.Participants {
		state.Users = append(state.Users, toUser(p))
	}
	for _, c := range snap.Cursors {
		state.Cursors = append(state.Cursors, toCursor(c))
	}
	return state
}

func toUser(p session.Participant) protocol.User {
	return protocol.User{ID: p.ID, Name: p.Name, Color: p.Color}
}

func toCursor(c session.Cursor) protocol.Cursor {
	out := protocol.Cursor{
		UserID:    c.UserID,
		UserName:  c.UserName,
		UserColor: c.UserColor,
		Position:  c.Position,
	}
	if c.Selection != nil {
		start, end := c.Selection.Start, c.Selection.End
		out.SelectionStart = &start
		out.SelectionEnd = &end
	}
	return out
}

func toCaret(position int, start, end *int) session.Caret {
	caret := session.Caret{Position: position}
	if start != nil && end != nil {
		caret.Selection = &session.Range{Start: *start, End: *end}
	}
	return caret
}
