package store_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"curbcycle.dev/opsdash/internal/store"
)

var _ = Describe("Models", func() {
	Describe("table names", func() {
		It("should map models to their hosted table names", func() {
			Expect(store.Profile{}.TableName()).To(Equal("profiles"))
			Expect(store.Session{}.TableName()).To(Equal("sessions"))
			Expect(store.House{}.TableName()).To(Equal("houses"))
			Expect(store.Assignment{}.TableName()).To(Equal("assignments"))
			Expect(store.Vehicle{}.TableName()).To(Equal("vehicles"))
			Expect(store.MaintenanceSchedule{}.TableName()).To(Equal("maintenance_schedules"))
			Expect(store.Subscription{}.TableName()).To(Equal("subscriptions"))
			Expect(store.Message{}.TableName()).To(Equal("messages"))
			Expect(store.AuditLog{}.TableName()).To(Equal("audit_logs"))
			Expect(store.Sensor{}.TableName()).To(Equal("iot_sensors"))
			Expect(store.SensorReading{}.TableName()).To(Equal("iot_sensor_readings"))
			Expect(store.SensorAlert{}.TableName()).To(Equal("iot_sensor_alerts"))
		})
	})

	Describe("Assignment", func() {
		It("should initialize with zero values", func() {
			a := store.Assignment{}
			Expect(a.Status).To(BeEmpty())
			Expect(a.CompletedAt).To(BeNil())
			Expect(a.ID).To(BeZero())
		})
	})

	Describe("Sensor", func() {
		It("should carry its threshold config", func() {
			s := store.Sensor{
				DeviceID: "bin-0042",
				Status:   store.SensorActive,
				AlertThresholds: store.ThresholdConfig{
					"fill_level": {Max: ptr(90)},
				},
			}
			Expect(s.AlertThresholds).To(HaveLen(1))
			Expect(s.TableName()).To(Equal("iot_sensors"))
		})
	})
})
