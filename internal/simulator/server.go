package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"curbcycle.dev/opsdash/pkg/metrics"
	"curbcycle.dev/opsdash/pkg/mq"
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// ReadingsQueue is the queue sensor payloads are published to
	ReadingsQueue string
	// LocationsQueue is the queue GPS pings are published to
	LocationsQueue string
	// Interval is the time between ticks per producer
	Interval time.Duration
	// ProducerCount is the number of concurrent producers
	ProducerCount int
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// Server manages multiple producer instances.
type Server struct {
	logger    *slog.Logger
	config    *ServerConfig
	producers []*Producer
	clients   []*mq.Client
	wg        sync.WaitGroup
	metrics   *metrics.SimulatorMetrics
}

var (
	errInvalidProducerCount = errors.New("producer count must be greater than 0")
	errInvalidInterval      = errors.New("interval must be greater than 0")
	errLoggerRequired       = errors.New("logger is required")
	errRabbitMQURLRequired  = errors.New("rabbitmq URL is required")
	errQueueNamesRequired   = errors.New("readings and locations queue names are required")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.ProducerCount <= 0 {
		return nil, errInvalidProducerCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.RabbitMQURL == "" {
		return nil, errRabbitMQURLRequired
	}

	if cfg.ReadingsQueue == "" || cfg.LocationsQueue == "" {
		return nil, errQueueNamesRequired
	}

	s := &Server{
		config:    cfg,
		producers: make([]*Producer, 0, cfg.ProducerCount),
		clients:   make([]*mq.Client, 0, cfg.ProducerCount*2),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}

	// Create producer instances with their own MQ clients
	for i := 0; i < cfg.ProducerCount; i++ {
		readingsClient := mq.New(cfg.ReadingsQueue, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "readings-mq-client"),
			slog.Int("producer_id", i),
		))
		locationsClient := mq.New(cfg.LocationsQueue, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "locations-mq-client"),
			slog.Int("producer_id", i),
		))

		// Enable MQ metrics if configured
		if cfg.MQMetrics != nil {
			readingsClient.SetMetrics(cfg.MQMetrics)
			locationsClient.SetMetrics(cfg.MQMetrics)
		}

		producer, err := NewProducer(readingsClient, locationsClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create producer %d: %w", i, err)
		}

		// Enable simulator metrics if configured
		if cfg.Metrics != nil {
			producer.SetMetrics(cfg.Metrics)
			cfg.Metrics.SensorsSimulated.Add(float64(len(producer.Sensors)))
		}

		s.clients = append(s.clients, readingsClient, locationsClient)
		s.producers = append(s.producers, producer)

		s.logger.Info("created producer instance",
			"producer_id", i,
			"sensors", len(producer.Sensors),
			"trucks", len(producer.Trucks),
		)
	}

	return s, nil
}

// Run starts all producers and blocks until shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	// Create context that can be canceled
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start all producers
	for i, producer := range s.producers {
		s.wg.Add(1)
		go s.runProducer(ctx, i, producer)
	}

	s.logger.Info("simulator server started",
		"producer_count", len(s.producers),
		"interval", s.config.Interval,
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	// Wait for all producers to finish
	s.logger.Info("waiting for producers to shut down...")
	s.wg.Wait()

	// Close all MQ clients
	s.logger.Info("closing MQ clients...")
	s.closeClients()

	s.logger.Info("simulator server stopped")
	return nil
}

// runProducer runs a single producer instance, ticking at the configured
// interval.
func (s *Server) runProducer(ctx context.Context, id int, producer *Producer) {
	defer s.wg.Done()

	// Track active producer
	if s.metrics != nil {
		s.metrics.ActiveProducers.Inc()
		defer s.metrics.ActiveProducers.Dec()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	producerLogger := s.logger.With(slog.Int("producer_id", id))
	producerLogger.Info("producer started")

	for {
		select {
		case <-ctx.Done():
			producerLogger.Info("producer shutting down")
			return

		case <-ticker.C:
			if err := producer.Tick(ctx); err != nil {
				producerLogger.Error("failed to publish fleet data",
					"error", err,
				)
				// Continue on error - don't stop the producer
				continue
			}

			producerLogger.Debug("fleet data published")
		}
	}
}

// closeClients closes all MQ clients gracefully.
func (s *Server) closeClients() {
	var wg sync.WaitGroup

	for i, client := range s.clients {
		wg.Add(1)
		go func(id int, c *mq.Client) {
			defer wg.Done()

			if err := c.Close(); err != nil {
				s.logger.Error("failed to close MQ client",
					"client_id", id,
					"error", err,
				)
				return
			}

			s.logger.Info("MQ client closed", "client_id", id)
		}(i, client)
	}

	wg.Wait()
}

// Shutdown initiates a graceful shutdown of the server.
// This is an alternative to sending OS signals.
func (s *Server) Shutdown() error {
	s.logger.Info("shutdown requested")

	// Close all MQ clients
	s.closeClients()

	return nil
}
