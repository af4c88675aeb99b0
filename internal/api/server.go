// Package api provides the HTTP/JSON API server: session auth, the
// operations data surface, the pricing calculator endpoint, the sensor
// webhook, and the websocket realtime feed.
package api

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"curbcycle.dev/opsdash/internal/realtime"
	"curbcycle.dev/opsdash/internal/store"
	"curbcycle.dev/opsdash/internal/telemetry"
	"curbcycle.dev/opsdash/pkg/metrics"
	"curbcycle.dev/opsdash/pkg/mq"
)

// Server represents the API server that manages the database, the broadcast
// exchange, and the HTTP listener.
type Server struct {
	logger     *slog.Logger
	db         *gorm.DB
	hub        *realtime.Hub
	recorder   *telemetry.Recorder
	events     *mq.Client
	httpServer *http.Server
	metrics    *metrics.APIMetrics
	config     *ServerConfig
	feedDone   chan struct{}
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// HTTP server configuration
	HTTPPort int

	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// RabbitMQ configuration
	RabbitMQURL    string
	EventsExchange string
}

// NewServer creates a new API Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
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

	if cfg.EventsExchange == "" {
		return nil, errors.New("events exchange cannot be empty")
	}

	return &Server{
		logger:   cfg.Logger,
		config:   cfg,
		hub:      realtime.NewHub(),
		feedDone: make(chan struct{}),
	}, nil
}

// Run starts the API server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting api server")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Initialize metrics
	s.metrics = metrics.NewAPIMetrics("opsdash")

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

	// Connect to the broadcast exchange. The same client publishes events
	// produced by this server and consumes the fleet-wide feed.
	s.events = mq.NewBroadcast(s.config.EventsExchange, s.config.RabbitMQURL, s.logger)
	s.events.SetMetrics(metrics.NewMQMetrics("opsdash_api"))

	// Initialize the shared payload recorder for the webhook path
	recorder, err := telemetry.NewRecorder(s.logger, s.db, s.events)
	if err != nil {
		return fmt.Errorf("failed to initialize recorder: %w", err)
	}
	s.recorder = recorder

	// Bridge the broadcast exchange onto the in-process hub
	go s.runFeed(ctx)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	// Start HTTP server in goroutine
	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("api server started successfully")

	// Wait for shutdown signal or HTTP error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	// Shutdown
	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down api server")

	var shutdownErr error

	// Shutdown HTTP server
	if s.httpServer != nil {
		s.logger.Info("stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	// Close broadcast client
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
		s.logger.Error("api server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("api server shutdown completed successfully")
	return nil
}

// routes configures the HTTP router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Sensor webhook authenticates with its own API key header, outside the
	// session scheme.
	r.Post("/functions/v1/iot-sensor-webhook", s.handleSensorWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/pricing/quote", s.handleQuote)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(s.withSession)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)
			r.Get("/stream", s.handleStream)

			r.Get("/houses", s.handleListHouses)
			r.Post("/houses", s.handleCreateHouse)
			r.Get("/houses/{id}", s.handleGetHouse)
			r.Put("/houses/{id}", s.handleUpdateHouse)
			r.Delete("/houses/{id}", s.handleDeleteHouse)

			r.Get("/subscriptions", s.handleListSubscriptions)
			r.Post("/subscriptions", s.handleCreateSubscription)

			r.Get("/messages", s.handleListMessages)
			r.Post("/messages", s.handleSendMessage)
			r.Post("/messages/{id}/read", s.handleMarkMessageRead)

			// Operational routes for staff
			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(store.RoleEmployee, store.RoleAdmin))

				r.Get("/assignments", s.handleListAssignments)
				r.Post("/assignments", s.handleCreateAssignment)
				r.Patch("/assignments/{id}/status", s.handleUpdateAssignmentStatus)
				r.Get("/assignments/summary", s.handleAssignmentSummary)

				r.Get("/vehicles", s.handleListVehicles)
				r.Post("/vehicles", s.handleCreateVehicle)
				r.Get("/vehicles/{id}", s.handleGetVehicle)
				r.Put("/vehicles/{id}", s.handleUpdateVehicle)

				r.Get("/maintenance", s.handleListMaintenance)
				r.Post("/maintenance", s.handleCreateMaintenance)
				r.Patch("/maintenance/{id}/complete", s.handleCompleteMaintenance)
				r.Get("/maintenance/summary", s.handleMaintenanceSummary)

				r.Get("/alerts", s.handleListAlerts)
				r.Patch("/alerts/{id}/status", s.handleUpdateAlertStatus)
			})

			// Administrative routes
			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(store.RoleAdmin))

				r.Get("/profiles", s.handleListProfiles)
				r.Post("/profiles", s.handleCreateProfile)
				r.Get("/profiles/{id}", s.handleGetProfile)
				r.Patch("/profiles/{id}", s.handleUpdateProfile)

				r.Get("/sensors", s.handleListSensors)
				r.Post("/sensors", s.handleCreateSensor)
				r.Get("/sensors/{id}", s.handleGetSensor)
				r.Patch("/sensors/{id}", s.handleUpdateSensor)
				r.Get("/sensors/{id}/readings", s.handleListSensorReadings)

				r.Get("/audit-logs", s.handleListAuditLogs)
			})
		})
	})

	return r
}

// handleHealth serves the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}
