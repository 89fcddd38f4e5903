package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
)

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(ctx, "node-1")
	defer b.Close()

	ch1, err := b.Subscribe(ctx, DefaultEnvelopeTopic)
	require.NoError(t, err)
	ch2, err := b.Subscribe(ctx, DefaultEnvelopeTopic)
	require.NoError(t, err)
	assert.Equal(t, 2, b.SubscriberCount(DefaultEnvelopeTopic))

	payload := []byte(`{"type":"token_set","status":"success"}`)
	require.NoError(t, b.Publish(ctx, DefaultEnvelopeTopic, payload))

	for _, ch := range []<-chan *Message{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, DefaultEnvelopeTopic, msg.Topic)
			assert.Equal(t, payload, msg.Payload)
			assert.Equal(t, "node-1", msg.NodeID)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestMemoryBroker_PublishWithoutSubscribers(t *testing.T) {
	b := NewMemoryBroker(context.Background(), "node-1")
	defer b.Close()

	assert.NoError(t, b.Publish(context.Background(), "nobody", []byte("x")))
}

func TestMemoryBroker_FullSubscriberIsSkipped(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(ctx, "node-1")
	defer b.Close()

	ch, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, b.Publish(ctx, "t", []byte("x")))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestMemoryBroker_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(ctx, "node-1")
	defer b.Close()

	ch, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	require.NoError(t, b.Unsubscribe(ctx, "t"))

	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, coreerrors.IsCode(b.Unsubscribe(ctx, "t"), coreerrors.CodeInvalidParam))
}

func TestMemoryBroker_Close(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker(ctx, "node-1")

	ch, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, b.Publish(ctx, "t", nil), coreerrors.ErrServiceClosed)
	assert.ErrorIs(t, b.Ping(ctx), coreerrors.ErrServiceClosed)
	_, err = b.Subscribe(ctx, "t")
	assert.ErrorIs(t, err, coreerrors.ErrServiceClosed)
	assert.NoError(t, b.Close())
}

func TestMemoryBroker_ParentCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewMemoryBroker(ctx, "node-1")
	ch, err := b.Subscribe(context.Background(), "t")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed after parent cancel")
	}
}

func TestNewMessageBroker(t *testing.T) {
	ctx := context.Background()

	b, err := NewMessageBroker(ctx, &BrokerConfig{Type: BrokerTypeMemory, NodeID: "n"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBroker{}, b)
	require.NoError(t, b.Close())

	_, err = NewMessageBroker(ctx, nil)
	assert.Error(t, err)
	_, err = NewMessageBroker(ctx, &BrokerConfig{Type: BrokerTypeRedis})
	assert.Error(t, err)
	_, err = NewMessageBroker(ctx, &BrokerConfig{Type: "kafka"})
	assert.Error(t, err)
}
