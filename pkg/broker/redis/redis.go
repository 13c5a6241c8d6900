// Package redis provides a broker.Broker on top of Redis PUBLISH/SUBSCRIBE.
//
// Each topic maps to one Redis channel. Redis pub/sub has no replay, which
// matches the broker's at-most-once contract.
//
// Only events cross Redis. Each process keeps its own session store, so a
// client joining on another replica starts from that replica's snapshot,
// and replicas can diverge. Deployments with more than one replica must
// route every client of a session to the same process.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/collabmd/collabmd/internal/logging"
	"github.com/collabmd/collabmd/pkg/broker"
)

// DefaultChannelPrefix is prepended to every topic.
const DefaultChannelPrefix = "collabmd:session:"

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 256

// Config contains configuration options for the Redis broker.
type Config struct {
	// Client is the Redis client to use. If nil, a client for
	// localhost:6379 is created.
	Client redis.UniversalClient

	// ChannelPrefix is prepended to every topic.
	// Default: DefaultChannelPrefix.
	ChannelPrefix string

	// BufferSize is the per-subscriber queue length.
	// Default: DefaultBufferSize.
	BufferSize int

	Logger *slog.Logger
}

// Broker is a Redis-backed broker.Broker.
type Broker struct {
	client     redis.UniversalClient
	prefix     string
	bufferSize int
	logger     *slog.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool

	dropped atomic.Uint64
}

// New creates a Redis broker. The broker owns the client and closes it on
// Close.
func New(config Config) *Broker {
	client := config.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr: "localhost:6379",
		})
	}

	prefix := config.ChannelPrefix
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}

	size := config.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Broker{
		client:     client,
		prefix:     prefix,
		bufferSize: size,
		logger:     logger.With(logging.Component("redis_broker")),
		subs:       make(map[*subscription]struct{}),
	}
}

// Connect parses a redis:// URL, checks the server is reachable and returns
// a Broker using it.
func Connect(ctx context.Context, url string, config Config) (*Broker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis broker: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis broker: ping %s: %w", opts.Addr, err)
	}

	config.Client = client
	return New(config), nil
}

// Publish implements broker.Broker.
func (b *Broker) Publish(ctx context.Context, topic string, msg broker.Message) error {
	if b.isClosed() {
		return broker.ErrClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis broker: marshal: %w", err)
	}

	channel := b.channel(topic)
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish message to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe implements broker.Broker. It returns once Redis has confirmed
// the subscription.
func (b *Broker) Subscribe(ctx context.Context, topic string) (broker.Subscription, error) {
	if b.isClosed() {
		return nil, broker.ErrClosed
	}

	channel := b.channel(topic)
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	sub := &subscription{
		broker: b,
		pubsub: pubsub,
		ch:     make(chan broker.Message, b.bufferSize),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		pubsub.Close()
		return nil, broker.ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.run()
	return sub, nil
}

// Ping implements broker.Pinger.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes every subscription and the Redis client.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}
	return b.client.Close()
}

// Dropped returns the number of messages dropped on full subscriber queues.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broker) channel(topic string) string {
	return b.prefix + topic
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type subscription struct {
	broker *Broker
	pubsub *redis.PubSub
	ch     chan broker.Message
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Messages() <-chan broker.Message {
	return s.ch
}

func (s *subscription) Close() error {
	b := s.broker
	b.mu.Lock()
	if b.subs != nil {
		delete(b.subs, s)
	}
	b.mu.Unlock()

	s.shutdown()
	return nil
}

func (s *subscription) shutdown() {
	s.once.Do(func() {
		s.pubsub.Close()
	})
	<-s.done
}

// run copies Redis messages to the subscriber queue until the PubSub is
// closed.
func (s *subscription) run() {
	defer close(s.done)
	defer close(s.ch)

	for m := range s.pubsub.Channel() {
		var msg broker.Message
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			s.broker.logger.Warn("dropping malformed message",
				"channel", m.Channel,
				logging.Err(err))
			continue
		}
		select {
		case s.ch <- msg:
		default:
			s.broker.dropped.Add(1)
		}
	}
}
