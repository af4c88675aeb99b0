package api

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testConfig() *ServerConfig {
	return &ServerConfig{
		Logger:         slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		HTTPPort:       8080,
		DBHost:         "localhost",
		DBPort:         5432,
		DBUser:         "opsdash",
		DBPassword:     "opsdash",
		DBName:         "opsdash",
		DBSSLMode:      "disable",
		RabbitMQURL:    "amqp://localhost:5672",
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
		Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
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
		Entry("zero HTTP port",
			func(c *ServerConfig) { c.HTTPPort = 0 }, "HTTP port must be positive"),
		Entry("empty database host",
			func(c *ServerConfig) { c.DBHost = "" }, "database host cannot be empty"),
		Entry("zero database port",
			func(c *ServerConfig) { c.DBPort = 0 }, "database port must be positive"),
		Entry("empty database user",
			func(c *ServerConfig) { c.DBUser = "" }, "database user cannot be empty"),
		Entry("empty database name",
			func(c *ServerConfig) { c.DBName = "" }, "database name cannot be empty"),
		Entry("empty rabbitmq URL",
			func(c *ServerConfig) { c.RabbitMQURL = "" }, "rabbitmq URL cannot be empty"),
		Entry("empty events exchange",
			func(c *ServerConfig) { c.EventsExchange = "" }, "events exchange cannot be empty"),
	)
})
