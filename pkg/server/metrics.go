package server

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/collabmd/collabmd/pkg/session"
)

// dropCounter is implemented by brokers that count dropped deliveries.
type dropCounter interface {
	Dropped() uint64
}

// metrics holds the Prometheus metrics of one Server.
type metrics struct {
	connectionsActive prometheus.Gauge
	messagesTotal     *prometheus.CounterVec
	messageDuration   *prometheus.HistogramVec
	broadcastsTotal   *prometheus.CounterVec
	publishErrors     prometheus.Counter
}

func newMetrics(registry prometheus.Registerer, namespace string, store *session.Store, b any) *metrics {
	factory := promauto.With(registry)

	m := &metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open WebSocket connections",
		}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Client messages handled, by event and result",
		}, []string{"event", "result"}),

		messageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_duration_seconds",
			Help:      "Client message handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),

		broadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Events published to the broker, by event",
		}, []string{"event"}),

		publishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Events that could not be published to the broker",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of sessions held in memory",
	}, func() float64 {
		return float64(store.Len())
	})

	if dc, ok := b.(dropCounter); ok {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_dropped_total",
			Help:      "Deliveries dropped because a subscriber queue was full",
		}, func() float64 {
			return float64(dc.Dropped())
		})
	}

	return m
}

// ServerStats is a point-in-time view of server counters.
type ServerStats struct {
	// Connections
	ActiveConnections int64
	TotalConnections  int64

	// Sessions
	ActiveSessions  int
	TotalSessions   uint64
	EvictedSessions uint64
	PeakSessions    int

	// Messages
	MessagesReceived int64
	MessagesRejected int64
	Broadcasts       int64
	PublishErrors    int64
	HandlerPanics    int64

	CollectedAt time.Time
}

// counters are the atomic counters behind ServerStats.
type counters struct {
	activeConns      atomic.Int64
	totalConns       atomic.Int64
	messagesReceived atomic.Int64
	messagesRejected atomic.Int64
	broadcasts       atomic.Int64
	publishErrors    atomic.Int64
	handlerPanics    atomic.Int64
}

// Stats collects and returns server counters.
func (s *Server) Stats() ServerStats {
	st := s.store.Stats()
	return ServerStats{
		ActiveConnections: s.counters.activeConns.Load(),
		TotalConnections:  s.counters.totalConns.Load(),
		ActiveSessions:    st.Active,
		TotalSessions:     st.TotalCreated,
		EvictedSessions:   st.TotalEvicted,
		PeakSessions:      st.Peak,
		MessagesReceived:  s.counters.messagesReceived.Load(),
		MessagesRejected:  s.counters.messagesRejected.Load(),
		Broadcasts:        s.counters.broadcasts.Load(),
		PublishErrors:     s.counters.publishErrors.Load(),
		HandlerPanics:     s.counters.handlerPanics.Load(),
		CollectedAt:       time.Now(),
	}
}
