package memory

import (
	"context"
	"testing"

	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/broker/brokertest"
)

func TestMemoryBroker(t *testing.T) {
	factory := func(t *testing.T) broker.Broker {
		return New(Config{})
	}

	brokertest.RunBrokerTests(t, factory)
}

func TestMemoryBrokerDropsWhenFull(t *testing.T) {
	b := New(Config{BufferSize: 2})
	defer b.Close()

	ctx := context.Background()
	sub, err := b.Subscribe(ctx, "doc")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	for i := 0; i < 5; i++ {
		if err := b.Publish(ctx, "doc", broker.Message{Version: uint64(i)}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	if got := b.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
	if got := len(sub.Messages()); got != 2 {
		t.Errorf("queued = %d, want 2", got)
	}
	if first := <-sub.Messages(); first.Version != 0 {
		t.Errorf("first queued version = %d, want 0", first.Version)
	}
}

func TestMemoryBrokerSubscribers(t *testing.T) {
	b := New(Config{})
	defer b.Close()

	ctx := context.Background()
	sub1, _ := b.Subscribe(ctx, "doc")
	sub2, _ := b.Subscribe(ctx, "doc")

	if n := b.Subscribers("doc"); n != 2 {
		t.Errorf("Subscribers = %d, want 2", n)
	}
	sub1.Close()
	if n := b.Subscribers("doc"); n != 1 {
		t.Errorf("Subscribers = %d, want 1", n)
	}
	sub2.Close()
	if n := b.Subscribers("doc"); n != 0 {
		t.Errorf("Subscribers = %d, want 0", n)
	}
	if _, ok := b.topics["doc"]; ok {
		t.Error("empty topic should be removed")
	}
}

func TestMemoryBrokerSubscribeCanceledContext(t *testing.T) {
	b := New(Config{})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Subscribe(ctx, "doc"); err == nil {
		t.Error("Subscribe with canceled context should fail")
	}
}
