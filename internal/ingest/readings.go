package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"curbcycle.dev/opsdash/internal/telemetry"
	"curbcycle.dev/opsdash/pkg/metrics"
	"curbcycle.dev/opsdash/pkg/wire"
)

// newReadingHandler builds the handler for the sensor-readings queue. It
// resolves the sensor, records the payload through the shared recorder, and
// counts raised alerts.
func newReadingHandler(logger *slog.Logger, recorder *telemetry.Recorder, m *metrics.IngestMetrics) HandlerFunc {
	return func(ctx context.Context, body []byte) Disposition {
		var payload wire.SensorPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			logger.Error("failed to unmarshal sensor payload", "error", err)
			return Dropped
		}

		sensor, err := recorder.SensorByDeviceID(ctx, payload.DeviceID)
		if err != nil {
			if errors.Is(err, telemetry.ErrUnknownDevice) {
				logger.Warn("payload from unknown device", "device_id", payload.DeviceID)
				return Dropped
			}
			logger.Error("sensor lookup failed", "device_id", payload.DeviceID, "error", err)
			return Retry
		}

		result, err := recorder.Record(ctx, sensor, &payload)
		if err != nil {
			if errors.Is(err, telemetry.ErrSensorInactive) || errors.Is(err, telemetry.ErrEmptyPayload) {
				logger.Warn("payload dropped",
					"device_id", payload.DeviceID,
					"reason", err,
				)
				return Dropped
			}
			logger.Error("failed to record sensor payload",
				"device_id", payload.DeviceID,
				"error", err,
			)
			return Retry
		}

		if m != nil {
			for _, alert := range result.Alerts {
				m.AlertsRaisedTotal.WithLabelValues(alert.ReadingType, alert.Direction).Inc()
			}
		}

		logger.Debug("sensor payload stored",
			"device_id", payload.DeviceID,
			"readings", result.Stored,
			"alerts", len(result.Alerts),
		)
		return Stored
	}
}
