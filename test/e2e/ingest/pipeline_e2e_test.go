package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	amqp "github.com/rabbitmq/amqp091-go"

	"curbcycle.dev/opsdash/internal/store"
	"curbcycle.dev/opsdash/pkg/mq"
	"curbcycle.dev/opsdash/pkg/wire"
)

func floatPtr(v float64) *float64 { return &v }

func publishJSON(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return mqChannel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

var _ = Describe("Ingest Pipeline E2E", func() {
	Context("Sensor Readings Consumer", func() {
		It("should consume and store readings for a registered sensor", func() {
			ctx := context.Background()

			sensor := &store.Sensor{
				DeviceID: "bin-e2e-001",
				APIKey:   "key-e2e-001",
				Name:     "Oak Street Bin",
				Status:   store.SensorActive,
			}
			Expect(testDB.Create(sensor).Error).NotTo(HaveOccurred())

			payload := wire.SensorPayload{
				DeviceID: sensor.DeviceID,
				Readings: []wire.ReadingValue{
					{Type: "fill_level", Value: 42.5, Unit: "%"},
					{Type: "temperature", Value: 19.0, Unit: "C"},
				},
				Timestamp: time.Now().Unix(),
			}
			Expect(publishJSON(ctx, readingsQueueName, payload)).To(Succeed())

			testLogger.Info("published sensor payload", "device_id", sensor.DeviceID)

			// Poll until both readings appear in the database.
			Eventually(func() int64 {
				var count int64
				testDB.Model(&store.SensorReading{}).
					Where("device_id = ?", sensor.DeviceID).
					Count(&count)
				return count
			}, 30*time.Second, 500*time.Millisecond).Should(BeNumerically(">=", 2))

			var reading store.SensorReading
			err := testDB.Where("device_id = ? AND reading_type = ?", sensor.DeviceID, "fill_level").
				First(&reading).Error
			Expect(err).NotTo(HaveOccurred())
			Expect(reading.SensorID).To(Equal(sensor.ID))
			Expect(reading.Value).To(BeNumerically("~", 42.5, 0.01))
			Expect(reading.Unit).To(Equal("%"))

			// Last seen should have been stamped on the sensor.
			Eventually(func() bool {
				var updated store.Sensor
				if err := testDB.First(&updated, sensor.ID).Error; err != nil {
					return false
				}
				return updated.LastSeenAt != nil
			}, 10*time.Second, 500*time.Millisecond).Should(BeTrue())

			testLogger.Info("sensor readings successfully consumed and stored")
		})

		It("should raise an alert when a reading breaches its threshold", func() {
			ctx := context.Background()

			sensor := &store.Sensor{
				DeviceID: "bin-e2e-002",
				APIKey:   "key-e2e-002",
				Name:     "Elm Street Bin",
				Status:   store.SensorActive,
				AlertThresholds: store.ThresholdConfig{
					"fill_level": {Max: floatPtr(90)},
					"battery":    {Min: floatPtr(20)},
				},
			}
			Expect(testDB.Create(sensor).Error).NotTo(HaveOccurred())

			payload := wire.SensorPayload{
				DeviceID: sensor.DeviceID,
				Readings: []wire.ReadingValue{
					{Type: "fill_level", Value: 97.0, Unit: "%"},
					{Type: "battery", Value: 12.0, Unit: "%"},
				},
				Timestamp: time.Now().Unix(),
			}
			Expect(publishJSON(ctx, readingsQueueName, payload)).To(Succeed())

			// Poll until both breaches are recorded.
			Eventually(func() int64 {
				var count int64
				testDB.Model(&store.SensorAlert{}).
					Where("device_id = ?", sensor.DeviceID).
					Count(&count)
				return count
			}, 30*time.Second, 500*time.Millisecond).Should(BeNumerically(">=", 2))

			var alerts []store.SensorAlert
			err := testDB.Where("device_id = ?", sensor.DeviceID).
				Order("reading_type asc").
				Find(&alerts).Error
			Expect(err).NotTo(HaveOccurred())
			Expect(alerts).To(HaveLen(2))

			Expect(alerts[0].ReadingType).To(Equal("battery"))
			Expect(alerts[0].Direction).To(Equal(store.BreachBelowMin))
			Expect(alerts[0].Limit).To(BeNumerically("~", 20, 0.01))
			Expect(alerts[0].Status).To(Equal(store.AlertOpen))

			Expect(alerts[1].ReadingType).To(Equal("fill_level"))
			Expect(alerts[1].Direction).To(Equal(store.BreachAboveMax))
			Expect(alerts[1].Limit).To(BeNumerically("~", 90, 0.01))

			testLogger.Info("threshold breaches successfully recorded as alerts")
		})

		It("should drop payloads from unknown devices without stalling the queue", func() {
			ctx := context.Background()

			unknown := wire.SensorPayload{
				DeviceID: "bin-e2e-unknown",
				Readings: []wire.ReadingValue{
					{Type: "fill_level", Value: 50.0},
				},
				Timestamp: time.Now().Unix(),
			}
			Expect(publishJSON(ctx, readingsQueueName, unknown)).To(Succeed())

			// A malformed body should be dropped the same way.
			err := mqChannel.PublishWithContext(ctx, "", readingsQueueName, false, false, amqp.Publishing{
				ContentType: "application/json",
				Body:        []byte("not json at all"),
			})
			Expect(err).NotTo(HaveOccurred())

			// A valid payload published afterwards must still be processed,
			// proving the bad ones did not wedge the consumer.
			sensor := &store.Sensor{
				DeviceID: "bin-e2e-003",
				APIKey:   "key-e2e-003",
				Status:   store.SensorActive,
			}
			Expect(testDB.Create(sensor).Error).NotTo(HaveOccurred())

			valid := wire.SensorPayload{
				DeviceID: sensor.DeviceID,
				Readings: []wire.ReadingValue{
					{Type: "temperature", Value: 21.5, Unit: "C"},
				},
				Timestamp: time.Now().Unix(),
			}
			Expect(publishJSON(ctx, readingsQueueName, valid)).To(Succeed())

			Eventually(func() int64 {
				var count int64
				testDB.Model(&store.SensorReading{}).
					Where("device_id = ?", sensor.DeviceID).
					Count(&count)
				return count
			}, 30*time.Second, 500*time.Millisecond).Should(BeNumerically(">=", 1))

			// The unknown device must never have produced rows.
			var unknownCount int64
			testDB.Model(&store.SensorReading{}).
				Where("device_id = ?", "bin-e2e-unknown").
				Count(&unknownCount)
			Expect(unknownCount).To(BeZero())

			testLogger.Info("unknown and malformed payloads dropped, valid payload processed")
		})

		It("should not store readings for an inactive sensor", func() {
			ctx := context.Background()

			sensor := &store.Sensor{
				DeviceID: "bin-e2e-004",
				APIKey:   "key-e2e-004",
				Status:   store.SensorInactive,
			}
			Expect(testDB.Create(sensor).Error).NotTo(HaveOccurred())

			payload := wire.SensorPayload{
				DeviceID: sensor.DeviceID,
				Readings: []wire.ReadingValue{
					{Type: "fill_level", Value: 60.0},
				},
				Timestamp: time.Now().Unix(),
			}
			Expect(publishJSON(ctx, readingsQueueName, payload)).To(Succeed())

			Consistently(func() int64 {
				var count int64
				testDB.Model(&store.SensorReading{}).
					Where("device_id = ?", sensor.DeviceID).
					Count(&count)
				return count
			}, 5*time.Second, 500*time.Millisecond).Should(BeZero())

			testLogger.Info("inactive sensor payload correctly rejected")
		})
	})

	Context("Fleet Locations Consumer", func() {
		It("should update the vehicle position from a GPS ping", func() {
			ctx := context.Background()

			vehicle := &store.Vehicle{
				Name:   "Truck 7",
				Plate:  "QRS-7001",
				Status: "active",
			}
			Expect(testDB.Create(vehicle).Error).NotTo(HaveOccurred())

			pingTime := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
			ping := wire.LocationPing{
				VehicleID: vehicle.Plate,
				Latitude:  47.6062,
				Longitude: -122.3321,
				Timestamp: pingTime.Unix(),
			}
			Expect(publishJSON(ctx, locationsQueueName, ping)).To(Succeed())

			testLogger.Info("published location ping", "plate", vehicle.Plate)

			Eventually(func() bool {
				var updated store.Vehicle
				if err := testDB.First(&updated, vehicle.ID).Error; err != nil {
					return false
				}
				return updated.LastSeenAt != nil
			}, 30*time.Second, 500*time.Millisecond).Should(BeTrue())

			var updated store.Vehicle
			Expect(testDB.First(&updated, vehicle.ID).Error).NotTo(HaveOccurred())
			Expect(updated.LastLatitude).To(BeNumerically("~", 47.6062, 0.0001))
			Expect(updated.LastLongitude).To(BeNumerically("~", -122.3321, 0.0001))
			Expect(updated.LastSeenAt.Unix()).To(Equal(pingTime.Unix()))

			testLogger.Info("vehicle position successfully updated")
		})

		It("should drop pings for unknown plates", func() {
			ctx := context.Background()

			ping := wire.LocationPing{
				VehicleID: "ZZZ-0000",
				Latitude:  10.0,
				Longitude: 20.0,
				Timestamp: time.Now().Unix(),
			}
			Expect(publishJSON(ctx, locationsQueueName, ping)).To(Succeed())

			// The consumer must keep running; a subsequent ping for a real
			// vehicle still lands.
			vehicle := &store.Vehicle{
				Name:   "Truck 8",
				Plate:  "QRS-8001",
				Status: "active",
			}
			Expect(testDB.Create(vehicle).Error).NotTo(HaveOccurred())

			Expect(publishJSON(ctx, locationsQueueName, wire.LocationPing{
				VehicleID: vehicle.Plate,
				Latitude:  48.0,
				Longitude: -121.0,
				Timestamp: time.Now().Unix(),
			})).To(Succeed())

			Eventually(func() bool {
				var updated store.Vehicle
				if err := testDB.First(&updated, vehicle.ID).Error; err != nil {
					return false
				}
				return updated.LastSeenAt != nil
			}, 30*time.Second, 500*time.Millisecond).Should(BeTrue())

			testLogger.Info("unknown plate dropped, valid ping processed")
		})
	})

	Context("Event Broadcast", func() {
		It("should fan out a fleet.location event for each stored ping", func() {
			ctx := context.Background()

			// Subscribe to the broadcast exchange before publishing so the
			// fanout copy is routed to our queue.
			subscriber := mq.NewBroadcast(eventsExchangeName, rabbitmqURL, testLogger)
			defer func() { _ = subscriber.Close() }()
			time.Sleep(2 * time.Second) // Wait for connection

			deliveries, err := subscriber.Consume()
			Expect(err).NotTo(HaveOccurred())
			time.Sleep(500 * time.Millisecond)

			vehicle := &store.Vehicle{
				Name:   "Truck 9",
				Plate:  "QRS-9001",
				Status: "active",
			}
			Expect(testDB.Create(vehicle).Error).NotTo(HaveOccurred())

			Expect(publishJSON(ctx, locationsQueueName, wire.LocationPing{
				VehicleID: vehicle.Plate,
				Latitude:  46.0,
				Longitude: -120.5,
				Timestamp: time.Now().Unix(),
			})).To(Succeed())

			// Receive the broadcast event for our plate. Other specs may
			// have produced events too, so scan until ours arrives.
			deadline := time.After(30 * time.Second)
			for {
				select {
				case delivery := <-deliveries:
					event, err := wire.ParseEvent(delivery.Body)
					Expect(err).NotTo(HaveOccurred())
					_ = delivery.Ack(false)
					if event.Topic != wire.TopicFleetLocation {
						continue
					}
					var body map[string]any
					Expect(json.Unmarshal(event.Payload, &body)).To(Succeed())
					if body["plate"] != vehicle.Plate {
						continue
					}
					Expect(body["latitude"]).To(BeNumerically("~", 46.0, 0.0001))
					Expect(body["longitude"]).To(BeNumerically("~", -120.5, 0.0001))
					testLogger.Info("received broadcast event", "topic", event.Topic)
					return
				case <-deadline:
					Fail(fmt.Sprintf("did not receive fleet.location event for %s within timeout", vehicle.Plate))
				}
			}
		})
	})
})
