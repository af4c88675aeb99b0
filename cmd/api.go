package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"curbcycle.dev/opsdash/internal/api"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the API server",
	Long: `Run the API server that:
- Serves the HTTP/JSON operations API with session auth
- Ingests sensor payloads via the webhook endpoint
- Prices subscription plan selections
- Streams realtime events over websockets`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)

	// API-specific flags
	apiCmd.Flags().Int("http-port", 8080, "HTTP server port")
	apiCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	apiCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	apiCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	apiCmd.Flags().String("db-password", "", "PostgreSQL password")
	apiCmd.Flags().String("db-name", "opsdash", "PostgreSQL database name")
	apiCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	apiCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	apiCmd.Flags().String("events-exchange", "opsdash.events", "RabbitMQ fanout exchange for feed events")

	// Bind flags to viper
	_ = viper.BindPFlag("api.http.port", apiCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("api.db.host", apiCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("api.db.port", apiCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("api.db.user", apiCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("api.db.password", apiCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("api.db.name", apiCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("api.db.sslmode", apiCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("api.rabbitmq.url", apiCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("api.rabbitmq.events_exchange", apiCmd.Flags().Lookup("events-exchange"))
}

func runAPI(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting api service")

	// Create API configuration from viper
	config := &api.ServerConfig{
		Logger:         logger,
		HTTPPort:       viper.GetInt("api.http.port"),
		DBHost:         viper.GetString("api.db.host"),
		DBPort:         viper.GetInt("api.db.port"),
		DBUser:         viper.GetString("api.db.user"),
		DBPassword:     viper.GetString("api.db.password"),
		DBName:         viper.GetString("api.db.name"),
		DBSSLMode:      viper.GetString("api.db.sslmode"),
		RabbitMQURL:    viper.GetString("api.rabbitmq.url"),
		EventsExchange: viper.GetString("api.rabbitmq.events_exchange"),
	}

	// Create and run server
	server, err := api.NewServer(config)
	if err != nil {
		logger.Error("failed to create api server", "error", err)
		return err
	}

	logger.Info("api server configuration",
		"http_port", config.HTTPPort,
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"events_exchange", config.EventsExchange,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("api server error", "error", err)
		return err
	}

	logger.Info("api server stopped")
	return nil
}
