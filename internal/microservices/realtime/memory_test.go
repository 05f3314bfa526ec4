package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, sub Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestMemoryTransport_PublishReachesAllSubscribers(t *testing.T) {
	transport := NewMemoryTransport()
	ctx := context.Background()

	sub1, err := transport.Subscribe(ctx, "ch1")
	require.NoError(t, err)
	sub2, err := transport.Subscribe(ctx, "ch1", "ch2")
	require.NoError(t, err)

	require.NoError(t, transport.Publish(ctx, "ch1", []byte("hello")))

	assert.Equal(t, "hello", string(receiveOne(t, sub1).Payload))
	assert.Equal(t, "hello", string(receiveOne(t, sub2).Payload))
}

func TestMemoryTransport_ChannelsAreIsolated(t *testing.T) {
	transport := NewMemoryTransport()
	ctx := context.Background()

	sub, err := transport.Subscribe(ctx, "ch1")
	require.NoError(t, err)

	require.NoError(t, transport.Publish(ctx, "ch2", []byte("elsewhere")))
	require.NoError(t, transport.Publish(ctx, "ch1", []byte("here")))

	msg := receiveOne(t, sub)
	assert.Equal(t, "ch1", msg.Channel)
	assert.Equal(t, "here", string(msg.Payload))
}

func TestMemoryTransport_CloseUnsubscribes(t *testing.T) {
	transport := NewMemoryTransport()
	ctx := context.Background()

	sub, err := transport.Subscribe(ctx, "ch1")
	require.NoError(t, err)
	require.Equal(t, 1, transport.SubscriberCount("ch1"))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close()) // close twice is fine

	assert.Zero(t, transport.SubscriberCount("ch1"))
	_, ok := <-sub.Events()
	assert.False(t, ok, "events channel should be closed")

	// publishing after close must not block or panic
	assert.NoError(t, transport.Publish(ctx, "ch1", []byte("late")))
}

func TestMemoryTransport_PublishWithoutSubscribers(t *testing.T) {
	transport := NewMemoryTransport()
	assert.NoError(t, transport.Publish(context.Background(), "nobody", []byte("x")))
}
