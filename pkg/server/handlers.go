package server

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/collabmd/collabmd/internal/logging"
	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/protocol"
	"github.com/collabmd/collabmd/pkg/session"
)

// dispatch decodes and handles one client frame. Rejected messages are
// answered with an error event and never close the connection.
func (s *Server) dispatch(c *Conn, frame []byte) {
	start := time.Now()
	s.counters.messagesReceived.Add(1)

	msg, err := protocol.Decode(frame)
	event := eventLabel(msg, err)

	ctx, span := s.startMessageSpan(c, event)
	if err == nil {
		err = s.safeHandle(ctx, c, msg)
	}
	endMessageSpan(span, c.SessionID(), err)

	result := "ok"
	if err != nil {
		result = string(errorCode(err))
		s.counters.messagesRejected.Add(1)
		c.logger.Warn("message rejected", "event", event, "code", result, logging.Err(err))
		c.reject(err)
	}

	s.metrics.messagesTotal.WithLabelValues(event, result).Inc()
	s.metrics.messageDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
}

// safeHandle runs the handler for msg, converting a panic into a
// *HandlerError.
func (s *Server) safeHandle(ctx context.Context, c *Conn, msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.counters.handlerPanics.Add(1)
			c.logger.Error("handler panic",
				"event", msg.EventName(),
				"panic", r,
				"stack", string(stack))
			err = &HandlerError{ConnID: c.ID, Event: msg.EventName(), Panic: r, Stack: stack}
		}
	}()

	switch m := msg.(type) {
	case *protocol.JoinSession:
		return s.handleJoin(ctx, c, m)
	case *protocol.ContentChange:
		return s.handleContentChange(c, m)
	case *protocol.CursorMove:
		return s.handleCursorMove(c, m)
	default:
		return fmt.Errorf("server: unhandled message %T", msg)
	}
}

// handleJoin subscribes the connection to the session's topic, registers
// the participant and sends the snapshot. The subscription is opened before
// the join so no event after the snapshot can be missed; the pump skips
// events the snapshot already contains.
func (s *Server) handleJoin(ctx context.Context, c *Conn, m *protocol.JoinSession) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	switch state {
	case stateJoined:
		return ErrAlreadyJoined
	case stateClosed:
		return ErrConnectionClosed
	}

	subCtx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	defer cancel()
	sub, err := s.broker.Subscribe(subCtx, m.SessionID)
	if err != nil {
		return NewConnError(c.ID, "subscribe", err)
	}

	snap, err := s.store.Join(m.SessionID, session.Participant{
		ID:    c.ID,
		Name:  m.UserName,
		Color: m.UserColor,
	})
	if err != nil {
		sub.Close()
		return NewConnError(c.ID, "join", err)
	}

	frame, err := protocol.Encode(protocol.EventSessionState, sessionState(snap))
	if err != nil {
		s.abortJoin(c, sub)
		return NewConnError(c.ID, "encode snapshot", err)
	}

	if !c.attach(m.SessionID, sub) {
		s.abortJoin(c, sub)
		return ErrConnectionClosed
	}

	c.deliver(frame)
	go c.pump(sub, snap.Version)

	c.logger.Info("joined session",
		logging.SessionID(m.SessionID),
		"user_name", m.UserName,
		"participants", len(snap.Participants))
	return nil
}

func (s *Server) abortJoin(c *Conn, sub broker.Subscription) {
	sub.Close()
	s.store.Leave(c.ID)
}

// handleContentChange replaces the document. The sender gets no echo.
func (s *Server) handleContentChange(c *Conn, m *protocol.ContentChange) error {
	sessionID, err := c.joinedSession(m.SessionID)
	if err != nil {
		return err
	}

	caret := toCaret(m.CursorPosition, m.SelectionStart, m.SelectionEnd)
	res, ok := s.store.UpdateContent(sessionID, c.ID, m.Content, caret)
	if !ok {
		c.logger.Debug("content change for unknown session", logging.SessionID(sessionID))
		return nil
	}
	if res.Cursor == nil {
		c.logger.Debug("content change from non-participant", logging.SessionID(sessionID))
	}
	return nil
}

// handleCursorMove updates the sender's cursor.
func (s *Server) handleCursorMove(c *Conn, m *protocol.CursorMove) error {
	sessionID, err := c.joinedSession(m.SessionID)
	if err != nil {
		return err
	}

	caret := toCaret(m.CursorPosition, m.SelectionStart, m.SelectionEnd)
	if _, ok := s.store.MoveCursor(sessionID, c.ID, caret); !ok {
		c.logger.Debug("cursor move ignored", logging.SessionID(sessionID))
	}
	return nil
}

// disconnect removes c from its sessions and releases its subscription.
// Peers learn about it through the resulting user-left events.
func (s *Server) disconnect(c *Conn, sub broker.Subscription) {
	left := s.store.Leave(c.ID)
	if sub != nil {
		if err := sub.Close(); err != nil && !errors.Is(err, broker.ErrClosed) {
			c.logger.Warn("unsubscribe failed", logging.Err(err))
		}
	}
	s.untrack(c)

	if len(left) > 0 {
		c.logger.Debug("left sessions", "sessions", left)
	}
}

// joinedSession checks that c is joined to sessionID.
func (c *Conn) joinedSession(sessionID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateConnected:
		return "", ErrNotJoined
	case stateClosed:
		return "", ErrConnectionClosed
	}
	if sessionID != c.sessionID {
		return "", ErrSessionMismatch
	}
	return c.sessionID, nil
}

// eventLabel returns a bounded metrics label for a decoded message.
func eventLabel(msg protocol.Message, err error) string {
	if err == nil {
		return msg.EventName()
	}
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		switch de.Event {
		case protocol.EventJoinSession, protocol.EventContentChange, protocol.EventCursorMove:
			return de.Event
		}
	}
	return "invalid"
}
