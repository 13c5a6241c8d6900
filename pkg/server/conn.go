package server

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/collabmd/collabmd/internal/logging"
	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/protocol"
)

// connState is the position of a connection in the join protocol.
type connState int

const (
	stateConnected connState = iota
	stateJoined
	stateClosed
)

// String returns the state name.
func (s connState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateJoined:
		return "joined"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is one WebSocket client.
//
// A Conn runs three goroutines: readLoop decodes and handles client
// messages, writeLoop owns every write to the socket, and pump copies
// broker messages for the joined session into the send queue.
type Conn struct {
	// ID is the connection id, also used as the participant id.
	ID string

	RemoteAddr  string
	ConnectedAt time.Time

	server *Server
	ws     *websocket.Conn

	send    chan []byte
	done    chan struct{} // closed once cleanup has finished
	stopped chan struct{} // closed when writeLoop has exited
	closed  atomic.Bool

	mu        sync.Mutex
	state     connState
	sessionID string
	sub       broker.Subscription
	closeCode int
	closeText string

	logger *slog.Logger
}

func newConn(s *Server, ws *websocket.Conn, remoteAddr string) *Conn {
	id := uuid.NewString()
	return &Conn{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		server:      s,
		ws:          ws,
		send:        make(chan []byte, s.config.SendQueueSize),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		state:       stateConnected,
		closeCode:   websocket.CloseNormalClosure,
		logger:      s.logger.With(logging.ConnID(id)),
	}
}

// Start starts the read and write loops.
func (c *Conn) Start() {
	go c.writeLoop()
	go c.readLoop()
}

// SessionID returns the joined session id, or "" before a join.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// IsClosed reports whether the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// readLoop reads client frames until the socket fails or the connection
// is closed.
func (c *Conn) readLoop() {
	defer c.Close()

	cfg := c.server.config
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	if cfg.KeepAliveInterval > 0 {
		wait := 2 * cfg.KeepAliveInterval
		c.ws.SetReadDeadline(time.Now().Add(wait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if errors.Is(err, websocket.ErrReadLimit) {
			c.logger.Warn("message too large", "limit", cfg.MaxMessageSize)
			c.CloseWithReason(websocket.CloseMessageTooBig, "message too large")
			return
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) && !c.closed.Load() {
				c.logger.Warn("read error", logging.Err(err))
			}
			return
		}
		c.server.dispatch(c, data)
	}
}

// writeLoop writes queued frames and keepalive pings. It is the only
// goroutine that writes data frames to the socket.
func (c *Conn) writeLoop() {
	defer close(c.stopped)
	defer c.ws.Close()

	cfg := c.server.config
	var ping <-chan time.Time
	if cfg.KeepAliveInterval > 0 {
		ticker := time.NewTicker(cfg.KeepAliveInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !c.closed.Load() {
					c.logger.Warn("write error", logging.Err(err))
				}
				c.Close()
				return
			}

		case <-ping:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.logger.Debug("ping failed", logging.Err(err))
				c.Close()
				return
			}

		case <-c.done:
			c.mu.Lock()
			code, text := c.closeCode, c.closeText
			c.mu.Unlock()
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, text),
				time.Now().Add(cfg.WriteTimeout))
			return
		}
	}
}

// pump forwards broker messages for the joined session. Messages caused by
// this connection and messages already reflected in the snapshot it was
// sent (version <= since) are skipped.
func (c *Conn) pump(sub broker.Subscription, since uint64) {
	nodeID := c.server.nodeID
	for msg := range sub.Messages() {
		if msg.Origin == c.ID {
			continue
		}
		if msg.Node == nodeID && msg.Version <= since {
			continue
		}
		if !c.deliver(msg.Payload) {
			return
		}
	}
}

// deliver queues frame for writing. It blocks while the queue is full and
// reports false once the connection is closed.
func (c *Conn) deliver(frame []byte) bool {
	if c.IsClosed() {
		return false
	}
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	}
}

// reject sends an error event for err to this connection only.
func (c *Conn) reject(err error) {
	code := errorCode(err)
	message := err.Error()
	if code == protocol.CodeInternal {
		message = "internal error"
	}

	frame, encErr := protocol.Encode(protocol.EventError, protocol.NewError(code, message))
	if encErr != nil {
		c.logger.Error("encode error event", logging.Err(encErr))
		return
	}
	c.deliver(frame)
}

// attach records a completed join. It reports false if the connection was
// closed while the join was in flight.
func (c *Conn) attach(sessionID string, sub broker.Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateConnected {
		return false
	}
	c.state = stateJoined
	c.sessionID = sessionID
	c.sub = sub
	return true
}

// Close closes the connection with a normal close frame.
func (c *Conn) Close() {
	c.CloseWithReason(websocket.CloseNormalClosure, "")
}

// CloseWithReason removes the connection from its session, notifies the
// remaining participants and closes the socket with the given close code.
// It is safe to call more than once; only the first call has an effect.
func (c *Conn) CloseWithReason(code int, text string) {
	if c.closed.Swap(true) {
		return
	}

	c.mu.Lock()
	prev := c.state
	sessionID := c.sessionID
	sub := c.sub
	c.state = stateClosed
	c.sub = nil
	c.closeCode = code
	c.closeText = text
	c.mu.Unlock()

	c.server.disconnect(c, sub)
	close(c.done)

	c.logger.Info("connection closed",
		"state", prev.String(),
		logging.SessionID(sessionID),
		logging.Duration(time.Since(c.ConnectedAt)))
}
