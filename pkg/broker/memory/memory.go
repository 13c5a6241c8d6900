// Package memory provides an in-process broker.Broker.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/collabmd/collabmd/pkg/broker"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 256

// Broker is an in-memory broker.Broker. Each subscriber has a buffered
// channel; a message that does not fit is dropped for that subscriber.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*subscription]struct{}
	closed bool

	bufferSize int
	dropped    atomic.Uint64
}

// Config configures a memory Broker.
type Config struct {
	// BufferSize is the per-subscriber queue length.
	// Default: DefaultBufferSize.
	BufferSize int
}

// New creates a memory Broker.
func New(config Config) *Broker {
	size := config.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Broker{
		topics:     make(map[string]map[*subscription]struct{}),
		bufferSize: size,
	}
}

// Publish implements broker.Broker.
func (b *Broker) Publish(ctx context.Context, topic string, msg broker.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return broker.ErrClosed
	}

	for sub := range b.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe implements broker.Broker.
func (b *Broker) Subscribe(ctx context.Context, topic string) (broker.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, broker.ErrClosed
	}

	sub := &subscription{
		broker: b,
		topic:  topic,
		ch:     make(chan broker.Message, b.bufferSize),
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub, nil
}

// Close implements broker.Broker.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.topics {
		for sub := range subs {
			sub.closeLocked()
		}
	}
	b.topics = nil
	return nil
}

// Dropped returns the number of messages dropped on full subscriber queues.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the number of subscribers of topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

type subscription struct {
	broker *Broker
	topic  string
	ch     chan broker.Message
	closed bool // protected by broker.mu
}

func (s *subscription) Messages() <-chan broker.Message {
	return s.ch
}

func (s *subscription) Close() error {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.closed {
		return nil
	}
	if subs, ok := b.topics[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.topics, s.topic)
		}
	}
	s.closeLocked()
	return nil
}

func (s *subscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
