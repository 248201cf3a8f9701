package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSubBasic(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "test-channel")
	require.NoError(t, err)
	defer cancel()

	err = ps.Publish(ctx, "test-channel", "hello")
	require.NoError(t, err)

	select {
	case msg := <-ch:
		assert.Equal(t, "test-channel", msg.Channel)
		assert.Equal(t, "hello", msg.Payload)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestPubSubUnsubscribe(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "ch")
	require.NoError(t, err)

	cancel() // unsubscribe

	// Channel should be closed
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after cancel")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel not closed after cancel")
	}

	// Publish to unsubscribed channel should not block
	err = ps.Publish(ctx, "ch", "msg")
	assert.NoError(t, err)
}

func TestPubSubMultipleSubscribers(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	ch1, cancel1, _ := ps.Subscribe(ctx, "broadcast")
	ch2, cancel2, _ := ps.Subscribe(ctx, "broadcast")
	defer cancel1()
	defer cancel2()

	require.NoError(t, ps.Publish(ctx, "broadcast", "world"))

	for _, ch := range []<-chan *LocalMessage{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "world", msg.Payload)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("subscriber did not receive message")
		}
	}
}

func TestPubSubCancelTwice(t *testing.T) {
	ps := NewPubSub(4)
	_, cancel, err := ps.Subscribe(context.Background(), "notify:1")
	require.NoError(t, err)

	cancel()
	assert.NotPanics(t, cancel)
}

func TestPubSubChannelIsolation(t *testing.T) {
	ps := NewPubSub(4)
	ctx := context.Background()

	ch1, cancel1, _ := ps.Subscribe(ctx, "notify:1")
	ch2, cancel2, _ := ps.Subscribe(ctx, "notify:2")
	defer cancel1()
	defer cancel2()

	require.NoError(t, ps.Publish(ctx, "notify:2", "for-two"))

	select {
	case msg := <-ch2:
		assert.Equal(t, "for-two", msg.Payload)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("subscriber of notify:2 did not receive message")
	}
	select {
	case msg := <-ch1:
		t.Fatalf("notify:1 subscriber got unexpected message %q", msg.Payload)
	default:
	}
}

func TestPubSubContextEndsSubscription(t *testing.T) {
	ps := NewPubSub(4)
	ctx, cancelCtx := context.WithCancel(context.Background())

	ch, cancel, err := ps.Subscribe(ctx, "notify:3", "announce")
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, 1, ps.Subscribers("announce"))

	cancelCtx()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel not closed after context cancel")
	}
	assert.Zero(t, ps.Subscribers("notify:3"))
	assert.Zero(t, ps.Subscribers("announce"))
}

func TestPubSubDropsWhenFull(t *testing.T) {
	ps := NewPubSub(1)
	ctx := context.Background()
	_, cancel, err := ps.Subscribe(ctx, "notify:9")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "notify:9", "a"))
	require.NoError(t, ps.Publish(ctx, "notify:9", "b"))
	assert.Equal(t, uint64(1), ps.Dropped())
}
