package simulator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"curbcycle.dev/opsdash/internal/simulator"
)

var _ = Describe("ContainerSensor", func() {
	It("should generate a sensor with identity and position", func() {
		sensor, err := simulator.NewContainerSensor()
		Expect(err).NotTo(HaveOccurred())
		Expect(sensor.DeviceID).NotTo(BeEmpty())
		Expect(sensor.Latitude).To(BeNumerically(">=", -90))
		Expect(sensor.Latitude).To(BeNumerically("<=", 90))
	})

	It("should produce payloads with the three reading types", func() {
		sensor, err := simulator.NewContainerSensor()
		Expect(err).NotTo(HaveOccurred())

		payload := sensor.NextPayload(time.Now())
		Expect(payload.DeviceID).To(Equal(sensor.DeviceID))
		Expect(payload.Location).NotTo(BeNil())

		types := make(map[string]float64, len(payload.Readings))
		for _, reading := range payload.Readings {
			types[reading.Type] = reading.Value
		}
		Expect(types).To(HaveKey("fill_level"))
		Expect(types).To(HaveKey("temperature"))
		Expect(types).To(HaveKey("battery"))
	})

	It("should keep fill level within 0-100 across many steps", func() {
		sensor, err := simulator.NewContainerSensor()
		Expect(err).NotTo(HaveOccurred())

		now := time.Now()
		for i := range 500 {
			payload := sensor.NextPayload(now.Add(time.Duration(i) * time.Minute))
			for _, reading := range payload.Readings {
				if reading.Type == "fill_level" {
					Expect(reading.Value).To(BeNumerically(">=", 0))
					Expect(reading.Value).To(BeNumerically("<=", 100))
				}
			}
		}
	})

	It("should drain the battery monotonically", func() {
		sensor, err := simulator.NewContainerSensor()
		Expect(err).NotTo(HaveOccurred())

		now := time.Now()
		previous := 101.0
		for i := range 100 {
			payload := sensor.NextPayload(now.Add(time.Duration(i) * time.Minute))
			for _, reading := range payload.Readings {
				if reading.Type == "battery" {
					Expect(reading.Value).To(BeNumerically("<=", previous))
					previous = reading.Value
				}
			}
		}
	})
})

var _ = Describe("Truck", func() {
	It("should generate a plate and driver", func() {
		truck := simulator.NewTruck()
		Expect(truck.Plate).To(MatchRegexp(`^[A-Za-z]{3}-\d{4}$`))
		Expect(truck.Driver).NotTo(BeEmpty())
	})

	It("should keep pings on the globe", func() {
		truck := simulator.NewTruck()
		now := time.Now()
		for i := range 1000 {
			ping := truck.NextPing(now.Add(time.Duration(i) * time.Second))
			Expect(ping.VehicleID).To(Equal(truck.Plate))
			Expect(ping.Latitude).To(BeNumerically(">=", -90))
			Expect(ping.Latitude).To(BeNumerically("<=", 90))
			Expect(ping.Longitude).To(BeNumerically(">=", -180))
			Expect(ping.Longitude).To(BeNumerically("<=", 180))
		}
	})

	It("should move between pings", func() {
		truck := simulator.NewTruck()
		first := truck.NextPing(time.Now())
		second := truck.NextPing(time.Now())
		moved := first.Latitude != second.Latitude || first.Longitude != second.Longitude
		Expect(moved).To(BeTrue())
	})
})
