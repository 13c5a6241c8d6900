// Package brokertest is a conformance suite for broker.Broker
// implementations.
package brokertest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/collabmd/collabmd/pkg/broker"
)

// BrokerFactory is a function that creates a new broker instance for testing.
type BrokerFactory func(t *testing.T) broker.Broker

// RunBrokerTests runs the complete broker test suite against the provided factory.
func RunBrokerTests(t *testing.T, factory BrokerFactory) {
	t.Run("PublishReachesEverySubscriber", func(t *testing.T) {
		testPublishReachesEverySubscriber(t, factory)
	})
	t.Run("TopicIsolation", func(t *testing.T) {
		testTopicIsolation(t, factory)
	})
	t.Run("PublishOrderPreserved", func(t *testing.T) {
		testPublishOrderPreserved(t, factory)
	})
	t.Run("PublishWithoutSubscribers", func(t *testing.T) {
		testPublishWithoutSubscribers(t, factory)
	})
	t.Run("SubscriptionClose", func(t *testing.T) {
		testSubscriptionClose(t, factory)
	})
	t.Run("BrokerClose", func(t *testing.T) {
		testBrokerClose(t, factory)
	})
}

func testPublishReachesEverySubscriber(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	topic := uniqueTopic()
	sub1 := mustSubscribe(t, ctx, b, topic)
	defer sub1.Close()
	sub2 := mustSubscribe(t, ctx, b, topic)
	defer sub2.Close()

	want := testMessage("conn-a", 1)
	if err := b.Publish(ctx, topic, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for i, sub := range []broker.Subscription{sub1, sub2} {
		got := receive(t, sub)
		if got.Origin != want.Origin || got.Version != want.Version || got.Event != want.Event {
			t.Errorf("subscriber %d got %+v, want %+v", i, got, want)
		}
		if string(got.Payload) != string(want.Payload) {
			t.Errorf("subscriber %d payload = %s, want %s", i, got.Payload, want.Payload)
		}
	}
}

func testTopicIsolation(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	topicA, topicB := uniqueTopic(), uniqueTopic()
	subA := mustSubscribe(t, ctx, b, topicA)
	defer subA.Close()
	subB := mustSubscribe(t, ctx, b, topicB)
	defer subB.Close()

	if err := b.Publish(ctx, topicA, testMessage("a", 1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish(ctx, topicB, testMessage("b", 2)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got := receive(t, subA); got.Origin != "a" {
		t.Errorf("topic A got origin %q", got.Origin)
	}
	if got := receive(t, subB); got.Origin != "b" {
		t.Errorf("topic B got origin %q", got.Origin)
	}
	expectNothing(t, subA)
}

func testPublishOrderPreserved(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	topic := uniqueTopic()
	sub := mustSubscribe(t, ctx, b, topic)
	defer sub.Close()

	const count = 50
	for i := 1; i <= count; i++ {
		if err := b.Publish(ctx, topic, testMessage("a", uint64(i))); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	for i := 1; i <= count; i++ {
		if got := receive(t, sub); got.Version != uint64(i) {
			t.Fatalf("message %d has version %d", i, got.Version)
		}
	}
}

func testPublishWithoutSubscribers(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	defer b.Close()

	if err := b.Publish(context.Background(), uniqueTopic(), testMessage("a", 1)); err != nil {
		t.Errorf("Publish without subscribers: %v", err)
	}
}

func testSubscriptionClose(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	topic := uniqueTopic()
	sub := mustSubscribe(t, ctx, b, topic)
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	waitClosed(t, sub)

	// Publishing to a topic whose only subscriber left must still succeed.
	if err := b.Publish(ctx, topic, testMessage("a", 1)); err != nil {
		t.Errorf("Publish after unsubscribe: %v", err)
	}
}

func testBrokerClose(t *testing.T, factory BrokerFactory) {
	b := factory(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := mustSubscribe(t, ctx, b, uniqueTopic())
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitClosed(t, sub)

	if err := b.Publish(ctx, uniqueTopic(), testMessage("a", 1)); !errors.Is(err, broker.ErrClosed) {
		t.Errorf("Publish after Close: err = %v, want ErrClosed", err)
	}
	if _, err := b.Subscribe(ctx, uniqueTopic()); !errors.Is(err, broker.ErrClosed) {
		t.Errorf("Subscribe after Close: err = %v, want ErrClosed", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("Subscription.Close after broker Close: %v", err)
	}
}

func uniqueTopic() string {
	return "test-" + uuid.NewString()
}

func testMessage(origin string, version uint64) broker.Message {
	payload, _ := json.Marshal(map[string]any{"event": "cursor-updated", "data": map[string]any{"position": version}})
	return broker.Message{
		Node:    "node-1",
		Origin:  origin,
		Version: version,
		Event:   "cursor-updated",
		Payload: payload,
	}
}

func mustSubscribe(t *testing.T, ctx context.Context, b broker.Broker, topic string) broker.Subscription {
	t.Helper()
	sub, err := b.Subscribe(ctx, topic)
	if err != nil {
		t.Fatalf("Subscribe(%s): %v", topic, err)
	}
	return sub
}

func receive(t *testing.T, sub broker.Subscription) broker.Message {
	t.Helper()
	var msg broker.Message
	select {
	case m, ok := <-sub.Messages():
		if !ok {
			t.Fatal("subscription closed before a message arrived")
		}
		msg = m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return msg
}

func expectNothing(t *testing.T, sub broker.Subscription) {
	t.Helper()
	select {
	case msg := <-sub.Messages():
		t.Errorf("unexpected message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitClosed(t *testing.T, sub broker.Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Messages():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel was not closed")
		}
	}
}
