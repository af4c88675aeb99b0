package api

import (
	"errors"
	"net/http"

	"curbcycle.dev/opsdash/internal/telemetry"
	"curbcycle.dev/opsdash/pkg/wire"
)

// apiKeyHeader authenticates field devices posting to the webhook.
const apiKeyHeader = "X-Sensor-Api-Key"

type webhookResponse struct {
	Success        bool `json:"success"`
	ReadingsStored int  `json:"readings_stored"`
}

// handleSensorWebhook ingests a sensor payload over HTTP. Devices without a
// queue connection (or third-party integrations) post here; the payload goes
// through the same recorder as the queue path.
func (s *Server) handleSensorWebhook(w http.ResponseWriter, r *http.Request) {
	sensor, err := s.recorder.SensorByAPIKey(r.Context(), r.Header.Get(apiKeyHeader))
	if err != nil {
		if errors.Is(err, telemetry.ErrUnknownDevice) {
			s.webhookRejected(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		s.logger.Error("webhook sensor lookup failed", "error", err)
		s.webhookError(w)
		return
	}

	var payload wire.SensorPayload
	if err := decodeJSON(r, &payload); err != nil {
		s.webhookRejected(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.DeviceID != "" && payload.DeviceID != sensor.DeviceID {
		s.webhookRejected(w, http.StatusUnauthorized, "device_id does not match api key")
		return
	}

	result, err := s.recorder.Record(r.Context(), sensor, &payload)
	if err != nil {
		switch {
		case errors.Is(err, telemetry.ErrSensorInactive):
			s.webhookRejected(w, http.StatusUnauthorized, "sensor is inactive")
		case errors.Is(err, telemetry.ErrEmptyPayload):
			s.webhookRejected(w, http.StatusBadRequest, "payload has no readings")
		default:
			s.logger.Error("webhook ingestion failed",
				"device_id", sensor.DeviceID,
				"error", err,
			)
			s.webhookError(w)
		}
		return
	}

	if s.metrics != nil {
		s.metrics.WebhookPayloadsTotal.WithLabelValues("stored").Inc()
		s.metrics.WebhookReadingsStored.Add(float64(result.Stored))
	}

	s.logger.Info("webhook payload stored",
		"device_id", sensor.DeviceID,
		"readings", result.Stored,
		"alerts", len(result.Alerts),
	)

	s.respondJSON(w, http.StatusOK, webhookResponse{
		Success:        true,
		ReadingsStored: result.Stored,
	})
}

func (s *Server) webhookRejected(w http.ResponseWriter, status int, msg string) {
	if s.metrics != nil {
		s.metrics.WebhookPayloadsTotal.WithLabelValues("rejected").Inc()
	}
	s.respondError(w, status, msg)
}

func (s *Server) webhookError(w http.ResponseWriter) {
	if s.metrics != nil {
		s.metrics.WebhookPayloadsTotal.WithLabelValues("error").Inc()
	}
	s.respondError(w, http.StatusInternalServerError, "internal error")
}
