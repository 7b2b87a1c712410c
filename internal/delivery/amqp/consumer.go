package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/publisher"
)

const (
	// Reconnection parameters
	maxReconnectDelay  = 30 * time.Second
	baseReconnectDelay = 1 * time.Second
)

// Consumer listens to RabbitMQ and dispatches JobMessage (with ACK callbacks) to a channel.
type Consumer struct {
	url      string
	conn     *amqplib.Connection
	channel  *amqplib.Channel
	logger   *zap.Logger
	jobs     chan<- *domain.JobMessage
	prefetch int

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewConsumer creates a new RabbitMQ consumer. Deliveries are not
// auto-acked: each one is wrapped in a JobMessage whose Ack/Nack callbacks
// the worker pool calls once the job has finished. prefetch bounds the
// number of unacknowledged jobs and should match the pool size.
func NewConsumer(url string, prefetch int, jobs chan<- *domain.JobMessage, logger *zap.Logger) (*Consumer, error) {
	if prefetch < 1 {
		prefetch = 1
	}
	c := &Consumer{
		url:      url,
		logger:   logger,
		jobs:     jobs,
		prefetch: prefetch,
		closeCh:  make(chan struct{}),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes the AMQP connection and channel.
func (c *Consumer) connect() error {
	conn, err := amqplib.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	// Recon jobs run for minutes, so never hold more than the pool can run.
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("amqp qos: %w", err)
	}

	if err := publisher.DeclareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	return nil
}

// Start begins consuming messages. It blocks until the context is cancelled.
// On connection loss it automatically reconnects with exponential backoff.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if err == nil {
			// Context was cancelled: clean shutdown.
			return nil
		}

		// Check if we were explicitly closed.
		select {
		case <-c.closeCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		c.logger.Warn("AMQP consumer lost connection, reconnecting...", zap.Error(err))

		// Exponential backoff reconnection loop.
		for attempt := 0; ; attempt++ {
			select {
			case <-c.closeCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}

			delay := time.Duration(math.Min(
				float64(baseReconnectDelay)*math.Pow(2, float64(attempt)),
				float64(maxReconnectDelay),
			))
			c.logger.Info("Reconnect attempt",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			time.Sleep(delay)

			if err := c.connect(); err != nil {
				c.logger.Error("Reconnect failed", zap.Error(err))
				continue
			}

			c.logger.Info("Reconnected to RabbitMQ")
			break
		}
	}
}

// consume runs one consume session until the delivery channel closes or ctx is cancelled.
func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("channel is nil")
	}

	deliveries, err := ch.Consume(
		publisher.QueueName,
		"",    // auto-generated consumer tag
		false, // auto-ack disabled (manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	c.logger.Info("AMQP consumer started", zap.String("queue", publisher.QueueName))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("AMQP consumer stopping (context cancelled)")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			msg, err := decodeJob(delivery.Body)
			if err != nil {
				c.logger.Error("Rejecting undecodable job",
					zap.Error(err),
					zap.String("body", string(delivery.Body)),
				)
				delivery.Nack(false, false) // reject → DLQ
				continue
			}

			c.logger.Debug("Received job from queue",
				zap.String("job_id", msg.JobID.String()),
				zap.String("kind", string(msg.Spec.Kind)),
				zap.Bool("redelivered", delivery.Redelivered),
			)

			// Create a local copy of the delivery tag so the closures are safe.
			tag := delivery.DeliveryTag
			localCh := ch

			msg.Ack = func() error {
				return localCh.Ack(tag, false)
			}
			msg.Nack = func(requeue bool) error {
				return localCh.Nack(tag, false, requeue)
			}

			// Dispatch to worker pool. Blocks while every worker is busy.
			select {
			case c.jobs <- msg:
			case <-ctx.Done():
				// Shutting down: nack so the message is requeued.
				delivery.Nack(false, true)
				return nil
			}
		}
	}
}

// Close gracefully shuts down the consumer.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// decodeJob parses a delivery body. Specs are validated again because the
// worker builds a command line from them.
func decodeJob(body []byte) (*domain.JobMessage, error) {
	var msg domain.JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	if err := msg.Spec.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
