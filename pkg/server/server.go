package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/collabmd/collabmd/internal/logging"
	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/broker/memory"
	"github.com/collabmd/collabmd/pkg/export"
	"github.com/collabmd/collabmd/pkg/session"
)

// Server is the HTTP/WebSocket server for collaborative sessions.
type Server struct {
	config *ServerConfig
	nodeID string

	store    *session.Store
	broker   broker.Broker
	exporter export.Exporter

	upgrader websocket.Upgrader

	connsMu sync.Mutex
	conns   map[string]*Conn
	closing bool

	registry *prometheus.Registry
	metrics  *metrics
	counters counters
	tracer   trace.Tracer

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server with the given configuration.
func New(config *ServerConfig) *Server {
	config = config.withDefaults()

	nodeID := config.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	b := config.Broker
	if b == nil {
		b = memory.New(memory.Config{BufferSize: config.SendQueueSize})
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	logger := config.Logger.With(logging.Component("server"))

	s := &Server{
		config:   config,
		nodeID:   nodeID,
		broker:   b,
		exporter: config.Exporter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		conns:    make(map[string]*Conn),
		registry: registry,
		tracer:   newTracer(),
		logger:   logger,
	}

	config.Store.Notifier = session.NotifierFunc(s.notify)
	s.store = session.NewStore(config.Store, config.Logger)
	s.metrics = newMetrics(registry, config.MetricsNamespace, s.store, b)

	return s
}

// HandleWebSocket upgrades the request and starts the connection loops.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Err(err), "remote_addr", r.RemoteAddr)
		return
	}

	c := newConn(s, ws, r.RemoteAddr)
	if !s.track(c) {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.config.WriteTimeout))
		ws.Close()
		return
	}

	c.logger.Info("connection opened", "remote_addr", r.RemoteAddr)
	c.Start()
}

// track registers c. It reports false once shutdown has begun.
func (s *Server) track(c *Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c.ID] = c
	s.counters.activeConns.Add(1)
	s.counters.totalConns.Add(1)
	s.metrics.connectionsActive.Inc()
	return true
}

func (s *Server) untrack(c *Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if _, ok := s.conns[c.ID]; !ok {
		return
	}
	delete(s.conns, c.ID)
	s.counters.activeConns.Add(-1)
	s.metrics.connectionsActive.Dec()
}

// Run starts the server and blocks until SIGINT/SIGTERM or a listener error.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext starts the server and blocks until ctx is done or the listener
// fails, then shuts down gracefully.
func (s *Server) RunContext(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address, "node_id", s.nodeID)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			s.closeBackends()
			return err
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections, closes every open connection with a
// normal close frame and releases the broker and the store.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	var httpErr error
	if s.httpServer != nil {
		// Hijacked websocket connections are not tracked by http.Server.
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", logging.Err(err))
			httpErr = err
		}
	}

	s.connsMu.Lock()
	s.closing = true
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()

	for _, c := range conns {
		c.CloseWithReason(websocket.CloseNormalClosure, "server shutting down")
	}
	for _, c := range conns {
		select {
		case <-c.stopped:
		case <-ctx.Done():
		}
	}

	s.closeBackends()

	s.logger.Info("server shutdown complete", "connections_closed", len(conns))
	return httpErr
}

func (s *Server) closeBackends() {
	if err := s.broker.Close(); err != nil {
		s.logger.Error("broker close error", logging.Err(err))
	}
	s.store.Close()
}

// Store returns the session store.
func (s *Server) Store() *session.Store {
	return s.store
}

// NodeID returns the broker identity of this process.
func (s *Server) NodeID() string {
	return s.nodeID
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}
