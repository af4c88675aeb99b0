// Package wire defines the JSON message formats exchanged over RabbitMQ
// between the simulator, the ingest service, and the API server's event feed.
package wire

import (
	"encoding/json"
	"time"
)

// ReadingValue is a single measurement inside a sensor payload.
type ReadingValue struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Location is an optional WGS84 position attached to a payload.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SensorPayload is the body a field device (or the simulator) submits,
// either to the HTTP webhook or onto the readings queue. The shape matches
// the documented webhook contract.
type SensorPayload struct {
	DeviceID  string          `json:"device_id"`
	Readings  []ReadingValue  `json:"readings"`
	Timestamp int64           `json:"timestamp"`
	Location  *Location       `json:"location,omitempty"`
	RawData   json.RawMessage `json:"raw_data,omitempty"`
}

// RecordedAt returns the payload timestamp as UTC time, falling back to now
// when the device did not send one.
func (p *SensorPayload) RecordedAt() time.Time {
	if p.Timestamp <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(p.Timestamp, 0).UTC()
}

// LocationPing is a GPS update for a vehicle on route, published by trucks
// (or the simulator) onto the locations queue.
type LocationPing struct {
	VehicleID  string  `json:"vehicle_id"`
	EmployeeID string  `json:"employee_id,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Timestamp  int64   `json:"timestamp"`
}

// Event topics carried on the broadcast exchange.
const (
	TopicSensorReading    = "sensor.reading"
	TopicSensorAlert      = "sensor.alert"
	TopicFleetLocation    = "fleet.location"
	TopicAssignmentStatus = "assignment.status"
)

// Event is a change notification fanned out to realtime subscribers.
// Payload is topic-specific JSON; consumers treat it as a snapshot and
// re-render, so duplicates and reordering are harmless.
type Event struct {
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent marshals payload and stamps the event with the current time.
func NewEvent(topic string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Topic:      topic,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Marshal encodes the event for transport.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent decodes an event received from the broadcast exchange.
func ParseEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
