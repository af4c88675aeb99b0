package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Threshold bounds one reading type. Either side may be absent.
type Threshold struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// ThresholdConfig maps a reading type (fill_level, temperature, battery,
// ...) to its alert bounds. Stored as a JSONB column on the sensor row; the
// dashboard owns the contents, the server only evaluates them.
type ThresholdConfig map[string]Threshold

// Breach directions reported on alerts.
const (
	BreachBelowMin = "below_min"
	BreachAboveMax = "above_max"
)

// Evaluate checks a value against the configured bounds for its reading
// type. It returns the violated limit and direction, or ok=false when the
// value is in range or no threshold is configured.
func (c ThresholdConfig) Evaluate(readingType string, value float64) (limit float64, direction string, ok bool) {
	t, configured := c[readingType]
	if !configured {
		return 0, "", false
	}
	if t.Min != nil && value < *t.Min {
		return *t.Min, BreachBelowMin, true
	}
	if t.Max != nil && value > *t.Max {
		return *t.Max, BreachAboveMax, true
	}
	return 0, "", false
}

// Value implements driver.Valuer, serializing the config to JSON.
func (c ThresholdConfig) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal threshold config: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner, deserializing the JSONB column.
func (c *ThresholdConfig) Scan(src any) error {
	if src == nil {
		*c = ThresholdConfig{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported source type for threshold config")
	}

	if len(raw) == 0 {
		*c = ThresholdConfig{}
		return nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to unmarshal threshold config: %w", err)
	}
	return nil
}

// StringList is a JSONB-backed string slice, used for add-on id snapshots.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = StringList{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported source type for string list")
	}

	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	if err := json.Unmarshal(raw, l); err != nil {
		return fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	return nil
}
