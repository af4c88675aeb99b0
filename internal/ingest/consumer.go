package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"curbcycle.dev/opsdash/pkg/metrics"
	"curbcycle.dev/opsdash/pkg/mq"
)

// Disposition is a handler's verdict on a delivery.
type Disposition int

const (
	// Stored acknowledges the message as processed.
	Stored Disposition = iota

	// Dropped acknowledges the message without processing it. Malformed or
	// unroutable payloads land here so they are never redelivered.
	Dropped

	// Retry nacks the message back onto the queue for reprocessing, used
	// for transient failures such as a database outage.
	Retry
)

// HandlerFunc processes one message body.
type HandlerFunc func(ctx context.Context, body []byte) Disposition

// Consumer drains one queue through a handler, translating the handler's
// disposition into ack/nack semantics.
type Consumer struct {
	logger    *slog.Logger
	mqClient  *mq.Client
	queueName string
	metrics   *metrics.IngestMetrics
	handle    HandlerFunc
	done      chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger      *slog.Logger
	RabbitMQURL string
	QueueName   string
	Metrics     *metrics.IngestMetrics
	Handle      HandlerFunc
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	if cfg.Handle == nil {
		return nil, errors.New("handler cannot be nil")
	}

	return &Consumer{
		logger:    cfg.Logger,
		mqClient:  mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger),
		queueName: cfg.QueueName,
		metrics:   cfg.Metrics,
		handle:    cfg.Handle,
		done:      make(chan struct{}),
	}, nil
}

// Start begins consuming messages from the queue.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting consumer", "queue", c.queueName)

	// Wait for MQ client to be ready
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started, waiting for messages", "queue", c.queueName)

	if c.metrics != nil {
		c.metrics.ActiveConsumers.Inc()
	}

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming messages from the deliveries channel.
func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer func() {
		if c.metrics != nil {
			c.metrics.ActiveConsumers.Dec()
		}
		close(c.done)
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing", "queue", c.queueName)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed", "queue", c.queueName)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single message delivery.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.ProcessingDuration.WithLabelValues(c.queueName))
	}

	disposition := c.handle(ctx, delivery.Body)

	if timer != nil {
		timer.ObserveDuration()
	}

	switch disposition {
	case Stored:
		if c.metrics != nil {
			c.metrics.MessagesTotal.WithLabelValues(c.queueName, "success").Inc()
		}
		if err := delivery.Ack(false); err != nil {
			c.logger.Error("failed to ack message", "queue", c.queueName, "error", err)
		}

	case Dropped:
		if c.metrics != nil {
			c.metrics.MessagesTotal.WithLabelValues(c.queueName, "dropped").Inc()
		}
		// Acknowledge anyway so the message is not redelivered
		if err := delivery.Ack(false); err != nil {
			c.logger.Error("failed to ack message", "queue", c.queueName, "error", err)
		}

	case Retry:
		if c.metrics != nil {
			c.metrics.MessagesTotal.WithLabelValues(c.queueName, "error").Inc()
		}
		if err := delivery.Nack(false, true); err != nil {
			c.logger.Error("failed to nack message", "queue", c.queueName, "error", err)
		}
	}
}

// Stop stops the consumer and closes the MQ client.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumer", "queue", c.queueName)

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	// Wait for message processing to complete
	<-c.done

	c.logger.Info("consumer stopped", "queue", c.queueName)
	return nil
}
