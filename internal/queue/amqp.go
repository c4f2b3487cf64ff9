package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
)

const retryCountHeader = "x-retry-count"

// AMQPQueue is a Queue backed by RabbitMQ. Each topic is a durable queue on
// the default exchange.
type AMQPQueue struct {
	conn *amqp.Connection

	// amqp.Channel is not safe for concurrent publishing.
	mu sync.Mutex
	ch *amqp.Channel

	consumers  []string
	loops      sync.WaitGroup
	jobs       errgroup.Group
	maxRetries int
	logger     *slog.Logger
}

// DialAMQP connects to url and allows at most concurrency unacknowledged
// deliveries, and concurrent handlers, at a time.
func DialAMQP(url string, concurrency int, logger *slog.Logger) (*AMQPQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open a channel: %w", err)
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	q := &AMQPQueue{conn: conn, ch: ch, maxRetries: DefaultMaxRetries, logger: logger}
	q.jobs.SetLimit(concurrency)
	return q, nil
}

func (q *AMQPQueue) declare(topic string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, err := q.ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	return nil
}

func (q *AMQPQueue) Publish(_ context.Context, topic string, msg Message) error {
	return q.publish(topic, msg, 0)
}

func (q *AMQPQueue) publish(topic string, msg Message, retryCount int) error {
	if err := q.declare(topic); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = newMessageID()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Headers:      toTable(msg.Attributes, retryCount),
		Body:         msg.Body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe starts consuming topic in the background until ctx is done or
// the queue is closed. Failed deliveries are republished with an
// incremented retry header, then dropped after maxRetries.
func (q *AMQPQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if err := q.declare(topic); err != nil {
		return err
	}

	tag := "agent-" + uuid.NewString()
	q.mu.Lock()
	deliveries, err := q.ch.Consume(
		topic,
		tag,
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err == nil {
		q.consumers = append(q.consumers, tag)
	}
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	q.loops.Add(1)
	go func() {
		defer q.loops.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				q.jobs.Go(func() error {
					q.handle(ctx, topic, d, handler)
					return nil
				})
			}
		}
	}()
	return nil
}

func (q *AMQPQueue) handle(ctx context.Context, topic string, d amqp.Delivery, handler Handler) {
	msg := Message{ID: d.MessageId, Topic: topic, Body: d.Body, Attributes: fromTable(d.Headers)}

	err := handler(ctx, msg)
	if err == nil {
		d.Ack(false)
		return
	}

	retryCount := headerInt(d.Headers[retryCountHeader]) + 1
	q.logger.Warn("job failed", "topic", topic, "message_id", msg.ID, "attempt", retryCount, "max_retries", q.maxRetries, "error", err)

	if retryCount > q.maxRetries {
		q.logger.Error("job permanently failed", "topic", topic, "message_id", msg.ID, "attempts", retryCount)
		d.Nack(false, false)
		return
	}
	if perr := q.publish(topic, msg, retryCount); perr != nil {
		q.logger.Error("requeue failed", "topic", topic, "message_id", msg.ID, "error", perr)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

// Close cancels consumers, waits for in-flight handlers and closes the
// connection.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	for _, tag := range q.consumers {
		if err := q.ch.Cancel(tag, false); err != nil {
			q.logger.Warn("cancel consumer", "consumer", tag, "error", err)
		}
	}
	q.consumers = nil
	q.mu.Unlock()

	q.loops.Wait()
	q.jobs.Wait()

	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return q.conn.Close()
}

func toTable(attrs map[string]string, retryCount int) amqp.Table {
	t := amqp.Table{}
	for k, v := range attrs {
		t[k] = v
	}
	if retryCount > 0 {
		t[retryCountHeader] = int32(retryCount)
	}
	return t
}

func fromTable(t amqp.Table) map[string]string {
	attrs := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			attrs[k] = s
		}
	}
	return attrs
}

func headerInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}

func newMessageID() string {
	return uuid.NewString()
}
