package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"curbcycle.dev/opsdash/internal/store"
)

// handleListSensors returns all registered sensors.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	q := s.db.WithContext(r.Context()).Order("id")
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var sensors []store.Sensor
	if err := q.Find(&sensors).Error; err != nil {
		s.respondStoreError(w, err, "sensors")
		return
	}
	s.respondJSON(w, http.StatusOK, sensors)
}

type createSensorRequest struct {
	DeviceID        string                `json:"device_id"`
	Name            string                `json:"name"`
	HouseID         *uint                 `json:"house_id"`
	AlertThresholds store.ThresholdConfig `json:"alert_thresholds"`
}

type createSensorResponse struct {
	Sensor store.Sensor `json:"sensor"`

	// APIKey is returned exactly once, at registration.
	APIKey string `json:"api_key"`
}

// handleCreateSensor registers a device and mints its webhook API key.
func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	var req createSensorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeviceID == "" {
		s.respondError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	sensor := store.Sensor{
		DeviceID:        req.DeviceID,
		APIKey:          uuid.NewString(),
		Name:            req.Name,
		HouseID:         req.HouseID,
		Status:          store.SensorActive,
		AlertThresholds: req.AlertThresholds,
	}
	if err := s.db.WithContext(r.Context()).Create(&sensor).Error; err != nil {
		s.logger.Error("failed to create sensor", "error", err)
		s.respondError(w, http.StatusConflict, "device already registered")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "create", "sensor", sensor.ID, sensor.DeviceID)

	s.respondJSON(w, http.StatusCreated, createSensorResponse{
		Sensor: sensor,
		APIKey: sensor.APIKey,
	})
}

// handleGetSensor returns one sensor.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor id")
		return
	}

	var sensor store.Sensor
	if err := s.db.WithContext(r.Context()).First(&sensor, id).Error; err != nil {
		s.respondStoreError(w, err, "sensor")
		return
	}
	s.respondJSON(w, http.StatusOK, sensor)
}

type updateSensorRequest struct {
	Name            *string                `json:"name"`
	HouseID         *uint                  `json:"house_id"`
	Status          *string                `json:"status"`
	AlertThresholds *store.ThresholdConfig `json:"alert_thresholds"`
}

// handleUpdateSensor applies a partial update: name, house binding, status,
// or threshold config.
func (s *Server) handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor id")
		return
	}

	var req updateSensorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sensor store.Sensor
	if err := s.db.WithContext(r.Context()).First(&sensor, id).Error; err != nil {
		s.respondStoreError(w, err, "sensor")
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.HouseID != nil {
		updates["house_id"] = *req.HouseID
	}
	if req.Status != nil {
		switch *req.Status {
		case store.SensorActive, store.SensorInactive:
			updates["status"] = *req.Status
		default:
			s.respondError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	if req.AlertThresholds != nil {
		updates["alert_thresholds"] = *req.AlertThresholds
	}
	if len(updates) == 0 {
		s.respondJSON(w, http.StatusOK, sensor)
		return
	}

	if err := s.db.WithContext(r.Context()).Model(&sensor).Updates(updates).Error; err != nil {
		s.respondStoreError(w, err, "sensor")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "update", "sensor", sensor.ID, "")
	s.respondJSON(w, http.StatusOK, sensor)
}

// handleListSensorReadings returns recent readings for a sensor, newest
// first. ?limit caps the page (default 100, max 1000).
func (s *Server) handleListSensorReadings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid sensor id")
		return
	}

	var sensor store.Sensor
	if err := s.db.WithContext(r.Context()).First(&sensor, id).Error; err != nil {
		s.respondStoreError(w, err, "sensor")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, 1000)
		}
	}

	q := s.db.WithContext(r.Context()).
		Where("sensor_id = ?", sensor.ID).
		Order("recorded_at desc").
		Limit(limit)
	if readingType := r.URL.Query().Get("type"); readingType != "" {
		q = q.Where("reading_type = ?", readingType)
	}

	var readings []store.SensorReading
	if err := q.Find(&readings).Error; err != nil {
		s.respondStoreError(w, err, "readings")
		return
	}
	s.respondJSON(w, http.StatusOK, readings)
}

// handleListAlerts returns threshold alerts, open ones first unless a status
// filter narrows the set.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := s.db.WithContext(r.Context()).Order("recorded_at desc").Limit(500)
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if device := r.URL.Query().Get("device_id"); device != "" {
		q = q.Where("device_id = ?", device)
	}

	var alerts []store.SensorAlert
	if err := q.Find(&alerts).Error; err != nil {
		s.respondStoreError(w, err, "alerts")
		return
	}
	s.respondJSON(w, http.StatusOK, alerts)
}

type updateAlertStatusRequest struct {
	Status string `json:"status"`
}

// handleUpdateAlertStatus acknowledges or resolves an alert.
func (s *Server) handleUpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	var req updateAlertStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Status {
	case store.AlertOpen, store.AlertAcknowledged, store.AlertResolved:
	default:
		s.respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	var alert store.SensorAlert
	if err := s.db.WithContext(r.Context()).First(&alert, id).Error; err != nil {
		s.respondStoreError(w, err, "alert")
		return
	}

	if err := s.db.WithContext(r.Context()).
		Model(&alert).
		Update("status", req.Status).Error; err != nil {
		s.respondStoreError(w, err, "alert")
		return
	}

	profile, _ := profileFromContext(r.Context())
	s.audit(r, profile.ID, "status", "alert", alert.ID, req.Status)
	s.respondJSON(w, http.StatusOK, alert)
}
