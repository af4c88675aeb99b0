package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"curbcycle.dev/opsdash/internal/simulator"
	"curbcycle.dev/opsdash/pkg/metrics"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the fleet simulator",
	Long: `Run the fleet simulator that:
- Generates synthetic container sensors and collection trucks
- Publishes correlated sensor readings to RabbitMQ
- Publishes GPS location pings to RabbitMQ
- Supports multiple concurrent producers`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	// Simulator-specific flags
	simulatorCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	simulatorCmd.Flags().String("readings-queue", "sensor-readings", "RabbitMQ queue name for sensor readings")
	simulatorCmd.Flags().String("locations-queue", "fleet-locations", "RabbitMQ queue name for GPS pings")
	simulatorCmd.Flags().Int("producer-count", 5, "Number of concurrent producers")
	simulatorCmd.Flags().Duration("interval", 5*time.Second, "Interval between ticks")

	// Bind flags to viper
	_ = viper.BindPFlag("simulator.rabbitmq.url", simulatorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("simulator.rabbitmq.readings_queue", simulatorCmd.Flags().Lookup("readings-queue"))
	_ = viper.BindPFlag("simulator.rabbitmq.locations_queue", simulatorCmd.Flags().Lookup("locations-queue"))
	_ = viper.BindPFlag("simulator.producer_count", simulatorCmd.Flags().Lookup("producer-count"))
	_ = viper.BindPFlag("simulator.interval", simulatorCmd.Flags().Lookup("interval"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting simulator service")

	// Create simulator configuration from viper
	config := &simulator.ServerConfig{
		Logger:         logger,
		RabbitMQURL:    viper.GetString("simulator.rabbitmq.url"),
		ReadingsQueue:  viper.GetString("simulator.rabbitmq.readings_queue"),
		LocationsQueue: viper.GetString("simulator.rabbitmq.locations_queue"),
		ProducerCount:  viper.GetInt("simulator.producer_count"),
		Interval:       viper.GetDuration("simulator.interval"),
		Metrics:        metrics.NewSimulatorMetrics("opsdash"),
		MQMetrics:      metrics.NewMQMetrics("opsdash_simulator"),
	}

	// Create and run server
	server, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator server", "error", err)
		return err
	}

	logger.Info("simulator server configuration",
		"rabbitmq_url", config.RabbitMQURL,
		"readings_queue", config.ReadingsQueue,
		"locations_queue", config.LocationsQueue,
		"producer_count", config.ProducerCount,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("simulator server error", "error", err)
		return err
	}

	logger.Info("simulator server stopped")
	return nil
}
