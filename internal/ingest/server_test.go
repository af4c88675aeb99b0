package ingest

import (
	"context"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"curbcycle.dev/opsdash/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() *ServerConfig {
	return &ServerConfig{
		Logger:         testLogger(),
		DBHost:         "localhost",
		DBPort:         5432,
		DBUser:         "opsdash",
		DBPassword:     "opsdash",
		DBName:         "opsdash",
		DBSSLMode:      "disable",
		RabbitMQURL:    "amqp://localhost:5672",
		ReadingsQueue:  "sensor-readings",
		LocationsQueue: "fleet-locations",
		EventsExchange: "opsdash.events",
	}
}

var _ = Describe("NewServer", func() {
	It("should create a server with a valid config", func() {
		server, err := NewServer(testConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(server).NotTo(BeNil())
	})

	It("should reject a nil config", func() {
		server, err := NewServer(nil)
		Expect(err).To(HaveOccurred())
		Expect(server).To(BeNil())
	})

	DescribeTable("should reject invalid configs",
		func(mutate func(*ServerConfig), wantErr string) {
			cfg := testConfig()
			mutate(cfg)

			server, err := NewServer(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(wantErr))
			Expect(server).To(BeNil())
		},
		Entry("nil logger",
			func(c *ServerConfig) { c.Logger = nil }, "logger cannot be nil"),
		Entry("empty database host",
			func(c *ServerConfig) { c.DBHost = "" }, "database host cannot be empty"),
		Entry("zero database port",
			func(c *ServerConfig) { c.DBPort = 0 }, "database port must be positive"),
		Entry("empty rabbitmq URL",
			func(c *ServerConfig) { c.RabbitMQURL = "" }, "rabbitmq URL cannot be empty"),
		Entry("empty readings queue",
			func(c *ServerConfig) { c.ReadingsQueue = "" }, "readings queue cannot be empty"),
		Entry("empty locations queue",
			func(c *ServerConfig) { c.LocationsQueue = "" }, "locations queue cannot be empty"),
		Entry("empty events exchange",
			func(c *ServerConfig) { c.EventsExchange = "" }, "events exchange cannot be empty"),
	)
})

var _ = Describe("NewConsumer", func() {
	validConfig := func() *ConsumerConfig {
		return &ConsumerConfig{
			Logger:      testLogger(),
			RabbitMQURL: "amqp://localhost:5672",
			QueueName:   "sensor-readings",
			Handle:      func(context.Context, []byte) Disposition { return Stored },
		}
	}

	It("should create a consumer with a valid config", func() {
		consumer, err := NewConsumer(validConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(consumer).NotTo(BeNil())
	})

	DescribeTable("should reject invalid configs",
		func(mutate func(*ConsumerConfig), wantErr string) {
			cfg := validConfig()
			mutate(cfg)

			consumer, err := NewConsumer(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(wantErr))
			Expect(consumer).To(BeNil())
		},
		Entry("nil logger",
			func(c *ConsumerConfig) { c.Logger = nil }, "logger cannot be nil"),
		Entry("empty rabbitmq URL",
			func(c *ConsumerConfig) { c.RabbitMQURL = "" }, "rabbitmq URL cannot be empty"),
		Entry("empty queue name",
			func(c *ConsumerConfig) { c.QueueName = "" }, "queue name cannot be empty"),
		Entry("nil handler",
			func(c *ConsumerConfig) { c.Handle = nil }, "handler cannot be nil"),
	)
})

var _ = Describe("Handlers", func() {
	Describe("reading handler", func() {
		It("should drop malformed payloads", func() {
			recorder, err := telemetry.NewRecorder(testLogger(), &gorm.DB{}, nil)
			Expect(err).NotTo(HaveOccurred())

			handle := newReadingHandler(testLogger(), recorder, nil)
			Expect(handle(context.Background(), []byte("not json"))).To(Equal(Dropped))
		})
	})

	Describe("location handler", func() {
		It("should drop malformed pings", func() {
			handle := newLocationHandler(testLogger(), &gorm.DB{}, nil, nil)
			Expect(handle(context.Background(), []byte("not json"))).To(Equal(Dropped))
		})

		It("should drop pings without a vehicle id", func() {
			handle := newLocationHandler(testLogger(), &gorm.DB{}, nil, nil)
			Expect(handle(context.Background(), []byte(`{"latitude": 1, "longitude": 2}`))).To(Equal(Dropped))
		})
	})
})
