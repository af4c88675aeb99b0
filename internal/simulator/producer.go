package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"curbcycle.dev/opsdash/pkg/metrics"
	"curbcycle.dev/opsdash/pkg/mq"
)

// Producer owns a slice of the simulated fleet and publishes its output.
type Producer struct {
	ReadingsClient  mq.ClientInterface
	LocationsClient mq.ClientInterface
	Sensors         []*ContainerSensor
	Trucks          []*Truck
	metrics         *metrics.SimulatorMetrics // Optional metrics
}

var errNoFleet = errors.New("producer has no sensors or trucks")

// NewProducer creates a producer with a random fleet slice: 1-5 container
// sensors and 1-2 trucks.
// Note: Uses math/rand throughout, which is acceptable for simulation data.
func NewProducer(readingsClient, locationsClient mq.ClientInterface) (*Producer, error) {
	sensorCount := rand.Intn(5) + 1 // #nosec G404 - simulation data
	sensors := make([]*ContainerSensor, 0, sensorCount)
	for range sensorCount {
		sensor, err := NewContainerSensor()
		if err != nil {
			return nil, fmt.Errorf("failed to generate sensor: %w", err)
		}
		sensors = append(sensors, sensor)
	}

	truckCount := rand.Intn(2) + 1 // #nosec G404 - simulation data
	trucks := make([]*Truck, 0, truckCount)
	for range truckCount {
		trucks = append(trucks, NewTruck())
	}

	return &Producer{
		ReadingsClient:  readingsClient,
		LocationsClient: locationsClient,
		Sensors:         sensors,
		Trucks:          trucks,
	}, nil
}

// SetMetrics sets the metrics collector for this producer.
func (p *Producer) SetMetrics(m *metrics.SimulatorMetrics) {
	p.metrics = m
}

// Tick publishes one reading from a random sensor and one ping from a
// random truck.
func (p *Producer) Tick(ctx context.Context) error {
	if len(p.Sensors) == 0 && len(p.Trucks) == 0 {
		return errNoFleet
	}

	now := time.Now().UTC()

	if len(p.Sensors) > 0 {
		sensor := p.Sensors[rand.Intn(len(p.Sensors))] // #nosec G404 - simulation data
		if err := p.publishReading(ctx, sensor, now); err != nil {
			return err
		}
	}

	if len(p.Trucks) > 0 {
		truck := p.Trucks[rand.Intn(len(p.Trucks))] // #nosec G404 - simulation data
		if err := p.publishPing(ctx, truck, now); err != nil {
			return err
		}
	}

	return nil
}

// publishReading generates and publishes one sensor payload.
func (p *Producer) publishReading(ctx context.Context, sensor *ContainerSensor, now time.Time) error {
	var timer *prometheus.Timer
	if p.metrics != nil {
		timer = prometheus.NewTimer(p.metrics.GenerationDuration.WithLabelValues("sensor_reading"))
		defer timer.ObserveDuration()
	}

	payload := sensor.NextPayload(now)

	message, err := json.Marshal(payload)
	if err != nil {
		if p.metrics != nil {
			p.metrics.GenerationFailures.WithLabelValues("sensor_reading", "marshal_error").Inc()
		}
		return err
	}

	if err := p.ReadingsClient.Push(ctx, message); err != nil {
		if p.metrics != nil {
			p.metrics.GenerationFailures.WithLabelValues("sensor_reading", "push_error").Inc()
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.PayloadsGenerated.WithLabelValues("sensor_reading").Inc()
	}
	return nil
}

// publishPing generates and publishes one GPS ping.
func (p *Producer) publishPing(ctx context.Context, truck *Truck, now time.Time) error {
	var timer *prometheus.Timer
	if p.metrics != nil {
		timer = prometheus.NewTimer(p.metrics.GenerationDuration.WithLabelValues("location_ping"))
		defer timer.ObserveDuration()
	}

	ping := truck.NextPing(now)

	message, err := json.Marshal(ping)
	if err != nil {
		if p.metrics != nil {
			p.metrics.GenerationFailures.WithLabelValues("location_ping", "marshal_error").Inc()
		}
		return err
	}

	if err := p.LocationsClient.Push(ctx, message); err != nil {
		if p.metrics != nil {
			p.metrics.GenerationFailures.WithLabelValues("location_ping", "push_error").Inc()
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.PayloadsGenerated.WithLabelValues("location_ping").Inc()
	}
	return nil
}
