// Package ingest provides the queue-fed ingestion service: it drains the
// sensor-readings and fleet-location queues into PostgreSQL and republishes
// change events onto the broadcast exchange.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"curbcycle.dev/opsdash/internal/store"
	"curbcycle.dev/opsdash/internal/telemetry"
	"curbcycle.dev/opsdash/pkg/metrics"
	"curbcycle.dev/opsdash/pkg/mq"
)

// Server represents the ingest service: two queue consumers, the database,
// and the broadcast publisher.
type Server struct {
	logger        *slog.Logger
	db            *gorm.DB
	events        *mq.Client
	readings      *Consumer
	locations     *Consumer
	metricsServer *http.Server
	config        *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// RabbitMQ configuration
	RabbitMQURL    string
	ReadingsQueue  string
	LocationsQueue string
	EventsExchange string

	// MetricsPort exposes /metrics when positive.
	MetricsPort int
}

// NewServer creates a new ingest Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.DBHost == "" {
		return nil, errors.New("database host cannot be empty")
	}

	if cfg.DBPort <= 0 {
		return nil, errors.New("database port must be positive")
	}

	if cfg.DBUser == "" {
		return nil, errors.New("database user cannot be empty")
	}

	if cfg.DBName == "" {
		return nil, errors.New("database name cannot be empty")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.ReadingsQueue == "" {
		return nil, errors.New("readings queue cannot be empty")
	}

	if cfg.LocationsQueue == "" {
		return nil, errors.New("locations queue cannot be empty")
	}

	if cfg.EventsExchange == "" {
		return nil, errors.New("events exchange cannot be empty")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the ingest service and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting ingest server")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Initialize metrics
	ingestMetrics := metrics.NewIngestMetrics("opsdash")

	// Initialize database
	dbCfg := &store.DBConfig{
		Host:     s.config.DBHost,
		Port:     s.config.DBPort,
		User:     s.config.DBUser,
		Password: s.config.DBPassword,
		DBName:   s.config.DBName,
		SSLMode:  s.config.DBSSLMode,
		Logger:   s.logger,
	}

	db, err := store.NewDB(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = db

	s.logger.Info("database initialized successfully")

	// Connect the broadcast publisher
	s.events = mq.NewBroadcast(s.config.EventsExchange, s.config.RabbitMQURL, s.logger)
	s.events.SetMetrics(metrics.NewMQMetrics("opsdash_ingest"))

	// Shared recorder for the readings path
	recorder, err := telemetry.NewRecorder(s.logger, s.db, s.events)
	if err != nil {
		return fmt.Errorf("failed to initialize recorder: %w", err)
	}

	// Readings consumer
	readings, err := NewConsumer(&ConsumerConfig{
		Logger:      s.logger,
		RabbitMQURL: s.config.RabbitMQURL,
		QueueName:   s.config.ReadingsQueue,
		Metrics:     ingestMetrics,
		Handle:      newReadingHandler(s.logger, recorder, ingestMetrics),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readings consumer: %w", err)
	}
	s.readings = readings

	// Locations consumer
	locations, err := NewConsumer(&ConsumerConfig{
		Logger:      s.logger,
		RabbitMQURL: s.config.RabbitMQURL,
		QueueName:   s.config.LocationsQueue,
		Metrics:     ingestMetrics,
		Handle:      newLocationHandler(s.logger, s.db, s.events, ingestMetrics),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize locations consumer: %w", err)
	}
	s.locations = locations

	// Start consumers
	if err := s.readings.Start(ctx); err != nil {
		return fmt.Errorf("failed to start readings consumer: %w", err)
	}
	if err := s.locations.Start(ctx); err != nil {
		return fmt.Errorf("failed to start locations consumer: %w", err)
	}

	// Optional metrics endpoint
	metricsErr := make(chan error, 1)
	if s.config.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			s.logger.Info("starting metrics server", "address", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- fmt.Errorf("metrics server error: %w", err)
			}
			close(metricsErr)
		}()
	}

	s.logger.Info("ingest server started successfully")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-metricsErr:
		if err != nil {
			s.logger.Error("metrics server error", "error", err)
			cancel()
			return err
		}
	}

	// Shutdown
	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down ingest server")

	var shutdownErr error

	// Stop metrics server
	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown metrics server", "error", err)
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		}
	}

	// Stop consumers
	for _, consumer := range []*Consumer{s.readings, s.locations} {
		if consumer == nil {
			continue
		}
		if err := consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "queue", consumer.queueName, "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; consumer shutdown error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("consumer shutdown error: %w", err)
			}
		}
	}

	// Close broadcast publisher
	if s.events != nil {
		s.logger.Info("closing events client")
		if err := s.events.Close(); err != nil {
			s.logger.Error("failed to close events client", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; events client close error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("events client close error: %w", err)
			}
		}
	}

	// Close database
	if s.db != nil {
		s.logger.Info("closing database connection")
		if err := store.CloseDB(s.db, s.logger); err != nil {
			s.logger.Error("failed to close database", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; database close error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("database close error: %w", err)
			}
		}
	}

	if shutdownErr != nil {
		s.logger.Error("ingest server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("ingest server shutdown completed successfully")
	return nil
}
