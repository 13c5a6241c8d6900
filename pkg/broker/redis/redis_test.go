package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/collabmd/collabmd/pkg/broker"
	"github.com/collabmd/collabmd/pkg/broker/brokertest"
)

func TestRedisBroker(t *testing.T) {
	// Skip if Redis is not available
	testClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := testClient.Ping(ctx).Err(); err != nil {
		testClient.Close()
		t.Skipf("Redis not available: %v", err)
	}
	testClient.Close()

	factory := func(t *testing.T) broker.Broker {
		client := redis.NewClient(&redis.Options{
			Addr: "localhost:6379",
		})
		return New(Config{
			Client:        client,
			ChannelPrefix: "test:collabmd:",
		})
	}

	brokertest.RunBrokerTests(t, factory)
}

func TestNewDefaults(t *testing.T) {
	b := New(Config{})
	defer b.Close()

	if b.prefix != DefaultChannelPrefix {
		t.Errorf("prefix = %q, want %q", b.prefix, DefaultChannelPrefix)
	}
	if b.bufferSize != DefaultBufferSize {
		t.Errorf("bufferSize = %d, want %d", b.bufferSize, DefaultBufferSize)
	}
	if got := b.channel("abc123"); got != "collabmd:session:abc123" {
		t.Errorf("channel = %q", got)
	}
}

func TestConnectInvalidURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not a url", Config{}); err == nil {
		t.Error("Connect with an invalid URL should fail")
	}
}
