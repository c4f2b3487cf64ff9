package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue() *InMemoryQueue {
	q := NewInMemoryQueue(2, discardLogger())
	q.RetryDelay = time.Millisecond
	return q
}

func TestInMemoryQueueDelivers(t *testing.T) {
	q := newTestQueue()
	var mu sync.Mutex
	var got []Message

	require.NoError(t, q.Subscribe(context.Background(), TopicInbound, func(_ context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
		return nil
	}))

	require.NoError(t, q.Publish(context.Background(), TopicInbound, Message{Body: []byte(`{"a":1}`), Attributes: map[string]string{"k": "v"}}))
	require.NoError(t, q.Close())

	require.Len(t, got, 1)
	assert.Equal(t, TopicInbound, got[0].Topic)
	assert.NotEmpty(t, got[0].ID)
	assert.JSONEq(t, `{"a":1}`, string(got[0].Body))
	assert.Equal(t, "v", got[0].Attributes["k"])
}

func TestInMemoryQueueRetriesFailingHandler(t *testing.T) {
	q := newTestQueue()
	var calls atomic.Int32

	require.NoError(t, q.Subscribe(context.Background(), TopicInbound, func(context.Context, Message) error {
		if calls.Add(1) < 3 {
			return errors.New("try again")
		}
		return nil
	}))
	require.NoError(t, q.Publish(context.Background(), TopicInbound, Message{}))
	require.NoError(t, q.Close())

	assert.Equal(t, int32(3), calls.Load())
}

func TestInMemoryQueueGivesUp(t *testing.T) {
	q := newTestQueue()
	var calls atomic.Int32

	require.NoError(t, q.Subscribe(context.Background(), TopicInbound, func(context.Context, Message) error {
		calls.Add(1)
		return errors.New("always")
	}))
	require.NoError(t, q.Publish(context.Background(), TopicInbound, Message{}))
	require.NoError(t, q.Close())

	assert.Equal(t, int32(DefaultMaxRetries+1), calls.Load())
}

func TestInMemoryQueueSurvivesCancelledPublisher(t *testing.T) {
	q := newTestQueue()
	done := make(chan struct{})
	require.NoError(t, q.Subscribe(context.Background(), TopicInbound, func(ctx context.Context, _ Message) error {
		defer close(done)
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, TopicInbound, Message{}))
	cancel()
	<-done
	require.NoError(t, q.Close())
}

func TestInMemoryQueueHandlerCanPublish(t *testing.T) {
	q := NewInMemoryQueue(1, discardLogger())
	var replies atomic.Int32

	require.NoError(t, q.Subscribe(context.Background(), TopicOutbound, func(context.Context, Message) error {
		replies.Add(1)
		return nil
	}))
	require.NoError(t, q.Subscribe(context.Background(), TopicInbound, func(ctx context.Context, msg Message) error {
		return q.Publish(ctx, TopicOutbound, Message{Body: msg.Body})
	}))

	for range 3 {
		require.NoError(t, q.Publish(context.Background(), TopicInbound, Message{}))
	}
	require.NoError(t, q.Close())
	assert.Equal(t, int32(3), replies.Load())
}

func TestInMemoryQueueLimitsConcurrency(t *testing.T) {
	q := newTestQueue()
	var running, peak atomic.Int32

	require.NoError(t, q.Subscribe(context.Background(), TopicInbound, func(context.Context, Message) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	}))
	for range 6 {
		require.NoError(t, q.Publish(context.Background(), TopicInbound, Message{}))
	}
	require.NoError(t, q.Close())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestInMemoryQueueErrors(t *testing.T) {
	q := newTestQueue()
	assert.Error(t, q.Publish(context.Background(), "nobody", Message{}))

	require.NoError(t, q.Subscribe(context.Background(), TopicInbound, func(context.Context, Message) error { return nil }))
	require.NoError(t, q.Close())
	assert.Error(t, q.Publish(context.Background(), TopicInbound, Message{}))
}

func TestAMQPHeaders(t *testing.T) {
	table := toTable(map[string]string{AttrMessageType: MessageTypeAgentReply}, 2)
	assert.Equal(t, 2, headerInt(table[retryCountHeader]))
	assert.Equal(t, map[string]string{AttrMessageType: MessageTypeAgentReply}, fromTable(table))

	assert.NotContains(t, toTable(nil, 0), retryCountHeader)
	assert.Equal(t, 0, headerInt("3"))
	assert.Equal(t, 5, headerInt(int64(5)))
}
