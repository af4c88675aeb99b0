package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"curbcycle.dev/opsdash/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the ingest service",
	Long: `Run the ingest service that:
- Consumes sensor readings from RabbitMQ and persists them
- Evaluates alert thresholds and records breaches
- Consumes fleet location pings and updates vehicle positions
- Broadcasts change events to the feed exchange`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	// Ingest-specific flags
	ingestCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	ingestCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	ingestCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	ingestCmd.Flags().String("db-password", "", "PostgreSQL password")
	ingestCmd.Flags().String("db-name", "opsdash", "PostgreSQL database name")
	ingestCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	ingestCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	ingestCmd.Flags().String("readings-queue", "sensor-readings", "RabbitMQ queue name for sensor readings")
	ingestCmd.Flags().String("locations-queue", "fleet-locations", "RabbitMQ queue name for GPS pings")
	ingestCmd.Flags().String("events-exchange", "opsdash.events", "RabbitMQ fanout exchange for feed events")
	ingestCmd.Flags().Int("metrics-port", 9091, "Prometheus metrics port (0 disables)")

	// Bind flags to viper
	_ = viper.BindPFlag("ingest.db.host", ingestCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("ingest.db.port", ingestCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("ingest.db.user", ingestCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("ingest.db.password", ingestCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("ingest.db.name", ingestCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("ingest.db.sslmode", ingestCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("ingest.rabbitmq.url", ingestCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("ingest.rabbitmq.readings_queue", ingestCmd.Flags().Lookup("readings-queue"))
	_ = viper.BindPFlag("ingest.rabbitmq.locations_queue", ingestCmd.Flags().Lookup("locations-queue"))
	_ = viper.BindPFlag("ingest.rabbitmq.events_exchange", ingestCmd.Flags().Lookup("events-exchange"))
	_ = viper.BindPFlag("ingest.metrics.port", ingestCmd.Flags().Lookup("metrics-port"))
}

func runIngest(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting ingest service")

	// Create ingest configuration from viper
	config := &ingest.ServerConfig{
		Logger:         logger,
		DBHost:         viper.GetString("ingest.db.host"),
		DBPort:         viper.GetInt("ingest.db.port"),
		DBUser:         viper.GetString("ingest.db.user"),
		DBPassword:     viper.GetString("ingest.db.password"),
		DBName:         viper.GetString("ingest.db.name"),
		DBSSLMode:      viper.GetString("ingest.db.sslmode"),
		RabbitMQURL:    viper.GetString("ingest.rabbitmq.url"),
		ReadingsQueue:  viper.GetString("ingest.rabbitmq.readings_queue"),
		LocationsQueue: viper.GetString("ingest.rabbitmq.locations_queue"),
		EventsExchange: viper.GetString("ingest.rabbitmq.events_exchange"),
		MetricsPort:    viper.GetInt("ingest.metrics.port"),
	}

	// Create and run server
	server, err := ingest.NewServer(config)
	if err != nil {
		logger.Error("failed to create ingest server", "error", err)
		return err
	}

	logger.Info("ingest server configuration",
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"readings_queue", config.ReadingsQueue,
		"locations_queue", config.LocationsQueue,
		"events_exchange", config.EventsExchange,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("ingest server error", "error", err)
		return err
	}

	logger.Info("ingest server stopped")
	return nil
}
