package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"curbcycle.dev/opsdash/internal/store"
	"curbcycle.dev/opsdash/internal/telemetry"
	"curbcycle.dev/opsdash/pkg/metrics"
	"curbcycle.dev/opsdash/pkg/wire"
)

// newLocationHandler builds the handler for the fleet-locations queue.
// Pings carry the vehicle plate; the last known position is overwritten and
// a fleet.location event is broadcast.
func newLocationHandler(logger *slog.Logger, db *gorm.DB, sink telemetry.EventSink, m *metrics.IngestMetrics) HandlerFunc {
	return func(ctx context.Context, body []byte) Disposition {
		var ping wire.LocationPing
		if err := json.Unmarshal(body, &ping); err != nil {
			logger.Error("failed to unmarshal location ping", "error", err)
			return Dropped
		}
		if ping.VehicleID == "" {
			logger.Warn("location ping without vehicle id")
			return Dropped
		}

		var vehicle store.Vehicle
		err := db.WithContext(ctx).Where("plate = ?", ping.VehicleID).First(&vehicle).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("location ping for unknown vehicle", "vehicle_id", ping.VehicleID)
				return Dropped
			}
			logger.Error("vehicle lookup failed", "vehicle_id", ping.VehicleID, "error", err)
			return Retry
		}

		seenAt := time.Now().UTC()
		if ping.Timestamp > 0 {
			seenAt = time.Unix(ping.Timestamp, 0).UTC()
		}

		updates := map[string]any{
			"last_latitude":  ping.Latitude,
			"last_longitude": ping.Longitude,
			"last_seen_at":   &seenAt,
		}
		if err := db.WithContext(ctx).Model(&vehicle).Updates(updates).Error; err != nil {
			logger.Error("failed to update vehicle position",
				"vehicle_id", ping.VehicleID,
				"error", err,
			)
			return Retry
		}

		if m != nil {
			m.LocationUpdatesTotal.Inc()
		}

		publishLocation(ctx, logger, sink, &vehicle, &ping)

		logger.Debug("vehicle position updated",
			"vehicle_id", ping.VehicleID,
			"latitude", ping.Latitude,
			"longitude", ping.Longitude,
		)
		return Stored
	}
}

// publishLocation broadcasts the updated position. Best-effort: the row is
// already durable.
func publishLocation(ctx context.Context, logger *slog.Logger, sink telemetry.EventSink, vehicle *store.Vehicle, ping *wire.LocationPing) {
	if sink == nil {
		return
	}

	event, err := wire.NewEvent(wire.TopicFleetLocation, map[string]any{
		"vehicle_id": vehicle.ID,
		"plate":      vehicle.Plate,
		"name":       vehicle.Name,
		"latitude":   ping.Latitude,
		"longitude":  ping.Longitude,
		"timestamp":  ping.Timestamp,
	})
	if err != nil {
		logger.Error("failed to build location event", "error", err)
		return
	}
	data, err := event.Marshal()
	if err != nil {
		logger.Error("failed to marshal location event", "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := sink.Push(pubCtx, data); err != nil {
		logger.Warn("failed to publish location event", "error", err)
	}
}
