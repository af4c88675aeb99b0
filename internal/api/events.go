package api

import (
	"context"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"curbcycle.dev/opsdash/pkg/wire"
)

// feedRetryDelay paces Consume retries while the broadcast client
// reconnects.
const feedRetryDelay = 2 * time.Second

// runFeed bridges the broadcast exchange onto the in-process hub. It retries
// Consume until the client is ready and re-subscribes after connection loss.
func (s *Server) runFeed(ctx context.Context) {
	defer close(s.feedDone)

	for {
		deliveries, err := s.events.Consume()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(feedRetryDelay):
				continue
			}
		}

		s.logger.Info("event feed connected")

		if done := s.drainFeed(ctx, deliveries); done {
			return
		}

		s.logger.Warn("event feed disconnected, resubscribing")
	}
}

// drainFeed consumes deliveries until the channel closes or ctx is done.
// Returns true when the server is shutting down.
func (s *Server) drainFeed(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return true

		case delivery, ok := <-deliveries:
			if !ok {
				return false
			}

			event, err := wire.ParseEvent(delivery.Body)
			if err != nil {
				s.logger.Error("failed to parse feed event", "error", err)
				if ackErr := delivery.Ack(false); ackErr != nil {
					s.logger.Error("failed to ack feed event", "error", ackErr)
				}
				continue
			}

			s.hub.Publish(event)
			if s.metrics != nil {
				s.metrics.FeedEventsTotal.WithLabelValues(event.Topic).Inc()
			}

			if err := delivery.Ack(false); err != nil {
				s.logger.Error("failed to ack feed event", "error", err)
			}
		}
	}
}

// publishEvent sends a change notification to the broadcast exchange.
// Failures are logged, never surfaced: the write already succeeded and the
// feed is best-effort.
func (s *Server) publishEvent(r *http.Request, topic string, payload any) {
	if s.events == nil {
		return
	}

	event, err := wire.NewEvent(topic, payload)
	if err != nil {
		s.logger.Error("failed to build event", "topic", topic, "error", err)
		return
	}
	data, err := event.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.events.Push(ctx, data); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
