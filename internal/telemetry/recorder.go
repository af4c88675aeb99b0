// Package telemetry persists sensor payloads and raises threshold alerts.
// It is shared by the HTTP webhook and the queue consumer so both ingestion
// paths behave identically.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"curbcycle.dev/opsdash/internal/store"
	"curbcycle.dev/opsdash/pkg/wire"
)

var (
	// ErrUnknownDevice is returned when no sensor matches the payload's
	// device id or the presented API key.
	ErrUnknownDevice = errors.New("telemetry: unknown device")

	// ErrSensorInactive is returned for payloads from deactivated sensors.
	ErrSensorInactive = errors.New("telemetry: sensor is inactive")

	// ErrEmptyPayload is returned when a payload carries no readings.
	ErrEmptyPayload = errors.New("telemetry: payload has no readings")
)

// EventSink publishes feed events. The broadcast MQ client satisfies it; a
// nil sink disables publication.
type EventSink interface {
	Push(ctx context.Context, data []byte) error
}

// Result summarizes one recorded payload.
type Result struct {
	Stored int
	Alerts []store.SensorAlert
}

// Recorder stores readings and evaluates alert thresholds.
type Recorder struct {
	logger *slog.Logger
	db     *gorm.DB
	sink   EventSink
}

// NewRecorder creates a Recorder. sink may be nil.
func NewRecorder(logger *slog.Logger, db *gorm.DB, sink EventSink) (*Recorder, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	return &Recorder{logger: logger, db: db, sink: sink}, nil
}

// SensorByAPIKey resolves the sensor authenticated by a webhook API key.
func (r *Recorder) SensorByAPIKey(ctx context.Context, apiKey string) (*store.Sensor, error) {
	if apiKey == "" {
		return nil, ErrUnknownDevice
	}
	var sensor store.Sensor
	if err := r.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&sensor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownDevice
		}
		return nil, fmt.Errorf("failed to look up sensor: %w", err)
	}
	return &sensor, nil
}

// SensorByDeviceID resolves the sensor for a queued payload.
func (r *Recorder) SensorByDeviceID(ctx context.Context, deviceID string) (*store.Sensor, error) {
	if deviceID == "" {
		return nil, ErrUnknownDevice
	}
	var sensor store.Sensor
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&sensor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownDevice
		}
		return nil, fmt.Errorf("failed to look up sensor: %w", err)
	}
	return &sensor, nil
}

// Record stores the payload's readings for the given sensor, evaluates the
// sensor's thresholds, and inserts one alert row per breach. Reading and
// alert events are published to the sink after the rows are committed.
func (r *Recorder) Record(ctx context.Context, sensor *store.Sensor, payload *wire.SensorPayload) (*Result, error) {
	if sensor == nil {
		return nil, ErrUnknownDevice
	}
	if sensor.Status != store.SensorActive {
		return nil, ErrSensorInactive
	}
	if payload == nil || len(payload.Readings) == 0 {
		return nil, ErrEmptyPayload
	}

	recordedAt := payload.RecordedAt()

	readings := make([]store.SensorReading, 0, len(payload.Readings))
	var alerts []store.SensorAlert
	for _, rv := range payload.Readings {
		readings = append(readings, store.SensorReading{
			SensorID:    sensor.ID,
			DeviceID:    sensor.DeviceID,
			ReadingType: rv.Type,
			Value:       rv.Value,
			Unit:        rv.Unit,
			RecordedAt:  recordedAt,
		})

		if limit, direction, breached := sensor.AlertThresholds.Evaluate(rv.Type, rv.Value); breached {
			alerts = append(alerts, store.SensorAlert{
				SensorID:    sensor.ID,
				DeviceID:    sensor.DeviceID,
				ReadingType: rv.Type,
				Value:       rv.Value,
				Limit:       limit,
				Direction:   direction,
				Status:      store.AlertOpen,
				RecordedAt:  recordedAt,
			})
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&readings).Error; err != nil {
			return fmt.Errorf("failed to store readings: %w", err)
		}
		if len(alerts) > 0 {
			if err := tx.Create(&alerts).Error; err != nil {
				return fmt.Errorf("failed to store alerts: %w", err)
			}
		}
		return tx.Model(&store.Sensor{}).
			Where("id = ?", sensor.ID).
			Update("last_seen_at", recordedAt).Error
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("recorded sensor payload",
		"device_id", sensor.DeviceID,
		"readings", len(readings),
		"alerts", len(alerts),
	)

	r.publish(ctx, wire.TopicSensorReading, readings)
	for _, alert := range alerts {
		r.publish(ctx, wire.TopicSensorAlert, alert)
	}

	return &Result{Stored: len(readings), Alerts: alerts}, nil
}

// publish sends a feed event; failures are logged, never fatal, since the
// rows are already durable.
func (r *Recorder) publish(ctx context.Context, topic string, payload any) {
	if r.sink == nil {
		return
	}

	event, err := wire.NewEvent(topic, payload)
	if err != nil {
		r.logger.Error("failed to build feed event", "topic", topic, "error", err)
		return
	}

	data, err := event.Marshal()
	if err != nil {
		r.logger.Error("failed to marshal feed event", "topic", topic, "error", err)
		return
	}

	// Short timeout so a broker outage cannot stall ingestion.
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.sink.Push(pubCtx, data); err != nil {
		r.logger.Warn("failed to publish feed event", "topic", topic, "error", err)
	}
}
