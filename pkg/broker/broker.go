// Package broker fans out encoded session events to every connection
// subscribed to a session.
//
// A topic is a session id. Delivery is best-effort and at-most-once per
// subscriber: a subscriber that cannot keep up loses messages rather than
// slowing down the publisher. Messages published to one topic by one
// publisher are delivered to each subscriber in publish order.
package broker

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by operations on a closed Broker or Subscription.
var ErrClosed = errors.New("broker: closed")

// Broker is a topic-based publish/subscribe transport.
type Broker interface {
	// Publish delivers msg to every current subscriber of topic.
	// It must not block on slow subscribers.
	Publish(ctx context.Context, topic string, msg Message) error

	// Subscribe registers a new subscriber of topic. Messages published
	// after Subscribe returns are delivered to the Subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Close releases the broker's resources and closes every subscription.
	Close() error
}

// Subscription is one subscriber's view of a topic.
type Subscription interface {
	// Messages returns the delivery channel. It is closed after Close or
	// when the broker shuts down.
	Messages() <-chan Message

	// Close unsubscribes. It is safe to call more than once.
	Close() error
}

// Pinger is implemented by brokers backed by an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Message is one published event.
type Message struct {
	// Node identifies the process that published the message.
	Node string `json:"node"`

	// Origin is the connection id that caused the event. Subscribers skip
	// messages they originated.
	Origin string `json:"origin"`

	// Version is the session version after the event, meaningful only on
	// the publishing node.
	Version uint64 `json:"version"`

	// Event is the server event name, kept for metrics.
	Event string `json:"event"`

	// Payload is the encoded server frame sent to clients as is.
	Payload json.RawMessage `json:"payload"`
}
