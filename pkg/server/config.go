package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/export"
	"github.com/collabmd/collabmd/pkg/session"
)

// ServerConfig holds configuration for the HTTP/WebSocket server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":3000").
	// Default: ":3000".
	Address string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: allows all origins.
	CheckOrigin func(r *http.Request) bool

	// Connection limits

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// A larger message closes the connection.
	// Default: 1 MiB.
	MaxMessageSize int64

	// SendQueueSize is the outbound frame queue length per connection.
	// Default: 256.
	SendQueueSize int

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// KeepAliveInterval is the interval between WebSocket pings. A peer
	// that does not answer within two intervals is disconnected.
	// Default: 0 (disabled).
	KeepAliveInterval time.Duration

	// Server lifecycle

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// Collaborators

	// Store configures the session store. Its Notifier is replaced by the
	// server's fan-out.
	// Default: session.DefaultStoreConfig().
	Store *session.StoreConfig

	// Broker carries events between connections.
	// Default: an in-memory broker.
	Broker broker.Broker

	// Exporter writes documents for the export endpoint.
	// Default: export.Disabled.
	Exporter export.Exporter

	// Metrics

	// MetricsNamespace prefixes every metric name.
	// Default: "collabmd".
	MetricsNamespace string

	// Registry receives the server metrics and backs /metrics.
	// Default: a new registry.
	Registry *prometheus.Registry

	// NodeID identifies this process on the broker.
	// Default: a random UUID.
	NodeID string

	// Logger is the root logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
// Broker, Registry and NodeID are filled in by New.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           ":3000",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       AllowAllOrigins,
		MaxMessageSize:    1 << 20,
		SendQueueSize:     256,
		WriteTimeout:      10 * time.Second,
		KeepAliveInterval: 0,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		Store:             session.DefaultStoreConfig(),
		Exporter:          export.Disabled{},
		MetricsNamespace:  "collabmd",
	}
}

// AllowAllOrigins accepts every WebSocket origin.
func AllowAllOrigins(*http.Request) bool {
	return true
}

// OriginChecker returns a CheckOrigin function accepting the listed origins.
// An entry matches either a full origin ("https://docs.example.com") or a
// bare host ("docs.example.com:8443"). An empty list or a "*" entry accepts
// every origin. Requests without an Origin header are accepted.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "" {
			continue
		}
		if o == "*" {
			return AllowAllOrigins
		}
		set[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	if len(set) == 0 {
		return AllowAllOrigins
	}

	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[u.Host]
		return ok
	}
}

// withDefaults returns a copy of c with every unset field defaulted.
func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		return defaults
	}

	cfg := *c
	if cfg.Address == "" {
		cfg.Address = defaults.Address
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = defaults.ReadBufferSize
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = defaults.WriteBufferSize
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = defaults.CheckOrigin
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaults.SendQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.KeepAliveInterval < 0 {
		cfg.KeepAliveInterval = 0
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if cfg.Store == nil {
		cfg.Store = defaults.Store
	} else {
		store := *cfg.Store
		cfg.Store = &store
	}
	if cfg.Exporter == nil {
		cfg.Exporter = defaults.Exporter
	}
	if cfg.MetricsNamespace == "" {
		cfg.MetricsNamespace = defaults.MetricsNamespace
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &cfg
}
