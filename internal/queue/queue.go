package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/unclebandit/smsleopard-agent/internal/retry"
)

const (
	// TopicInbound carries customer messages waiting for an agent reply.
	TopicInbound = "inbound_messages"
	// TopicOutbound carries agent replies waiting to be sent as SMS.
	TopicOutbound = "outbound_sms"

	DefaultMaxRetries  = 3
	DefaultConcurrency = 8
)

// Message is one queued payload plus its string attributes.
type Message struct {
	ID         string
	Topic      string
	Body       []byte
	Attributes map[string]string
}

// Handler processes one message. A non-nil error asks the queue to retry.
type Handler func(ctx context.Context, msg Message) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// InMemoryQueue delivers messages to subscribers in-process, retrying failed
// handlers with a linear backoff. Each topic runs at most concurrency
// handlers at a time, so a handler may publish to another topic without
// waiting on its own slot.
type InMemoryQueue struct {
	mu          sync.Mutex
	handlers    map[string][]Handler
	slots       map[string]*semaphore.Weighted
	concurrency int64
	closed      bool

	jobs       errgroup.Group
	MaxRetries int
	RetryDelay time.Duration
	logger     *slog.Logger
}

// NewInMemoryQueue creates a new queue running at most concurrency handlers
// per topic at a time.
func NewInMemoryQueue(concurrency int, logger *slog.Logger) *InMemoryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &InMemoryQueue{
		handlers:    make(map[string][]Handler),
		slots:       make(map[string]*semaphore.Weighted),
		concurrency: int64(concurrency),
		MaxRetries:  DefaultMaxRetries,
		RetryDelay:  500 * time.Millisecond,
		logger:      logger,
	}
}

// jobPayload wraps a message with retry info
type jobPayload struct {
	msg        Message
	retryCount int
	maxRetries int
}

// Publish hands msg to every subscriber of topic. Jobs wait for a free
// handler slot in the background.
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, msg Message) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	slots := q.slots[topic]
	closed := q.closed
	q.mu.Unlock()

	if closed {
		return fmt.Errorf("queue closed")
	}
	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	msg.Topic = topic
	if msg.ID == "" {
		msg.ID = newMessageID()
	}
	job := jobPayload{msg: msg, maxRetries: q.MaxRetries}

	// Jobs outlive the publishing request.
	jobCtx := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		q.jobs.Go(func() error {
			if err := slots.Acquire(jobCtx, 1); err != nil {
				return nil
			}
			defer slots.Release(1)
			q.processJob(jobCtx, handler, job)
			return nil
		})
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(ctx context.Context, handler Handler, job jobPayload) {
	for job.retryCount <= job.maxRetries {
		err := handler(ctx, job.msg)
		if err == nil {
			q.logger.Debug("job processed", "topic", job.msg.Topic, "message_id", job.msg.ID)
			return
		}

		job.retryCount++
		q.logger.Warn("job failed", "topic", job.msg.Topic, "message_id", job.msg.ID,
			"attempt", job.retryCount, "max_retries", job.maxRetries, "error", err)

		if job.retryCount > job.maxRetries {
			q.logger.Error("job permanently failed", "topic", job.msg.Topic, "message_id", job.msg.ID, "attempts", job.retryCount)
			return
		}

		if err := retry.SleepContext(ctx, time.Duration(job.retryCount)*q.RetryDelay); err != nil {
			return
		}
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(_ context.Context, topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	if q.slots[topic] == nil {
		q.slots[topic] = semaphore.NewWeighted(q.concurrency)
	}
	return nil
}

// Close waits for in-flight jobs, including any they publish, and then stops
// accepting messages.
func (q *InMemoryQueue) Close() error {
	q.jobs.Wait()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.jobs.Wait()
}
