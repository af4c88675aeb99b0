// Package simulator generates a synthetic fleet: container sensors that
// fill up, heat up, and drain their batteries, plus trucks pinging GPS
// positions. It feeds the ingest queues with realistic load.
package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"curbcycle.dev/opsdash/pkg/wire"
)

// ContainerSensor is a simulated bin-mounted sensor.
type ContainerSensor struct {
	DeviceID  string  `fake:"{uuid}"`
	Street    string  `fake:"{street}"`
	City      string  `fake:"{city}"`
	Latitude  float64 `fake:"{latitude}"`
	Longitude float64 `fake:"{longitude}"`

	fillLevel float64
	fillRate  float64
	baseTemp  float64
	battery   float64
	noise     float64
}

// NewContainerSensor creates a sensor with randomized identity and baselines.
func NewContainerSensor() (*ContainerSensor, error) {
	var sensor ContainerSensor
	if err := gofakeit.Struct(&sensor); err != nil {
		return nil, err
	}

	sensor.fillLevel = rand.Float64() * 40          // #nosec G404 - simulation data
	sensor.fillRate = 0.5 + rand.Float64()*2.0      // % per reading
	sensor.baseTemp = 10.0 + rand.Float64()*15      // 10-25°C ambient
	sensor.battery = 60.0 + rand.Float64()*40       // 60-100%
	sensor.noise = rand.Float64() * 1.5
	return &sensor, nil
}

// NextPayload advances the simulation one step and returns the payload the
// device would submit.
func (c *ContainerSensor) NextPayload(t time.Time) *wire.SensorPayload {
	// Fill level climbs until a pickup empties the bin.
	c.fillLevel += c.fillRate * (0.5 + rand.Float64())
	if c.fillLevel > 95 {
		c.fillLevel = rand.Float64() * 10
	}

	// Daily temperature cycle peaking mid-afternoon, plus decomposition heat
	// as the bin fills.
	hour := float64(t.Hour())
	dailyCycle := 6 * math.Sin((hour-6)*math.Pi/12)
	fillHeat := c.fillLevel * 0.05
	temperature := c.baseTemp + dailyCycle + fillHeat + (rand.Float64()-0.5)*c.noise

	// Battery drains slowly, faster in cold weather.
	drain := 0.01
	if temperature < 5 {
		drain *= 2
	}
	c.battery = math.Max(1, c.battery-drain*(0.5+rand.Float64()))

	round := func(v float64) float64 { return math.Round(v*100) / 100 }

	return &wire.SensorPayload{
		DeviceID:  c.DeviceID,
		Timestamp: t.Unix(),
		Location: &wire.Location{
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
		},
		Readings: []wire.ReadingValue{
			{Type: "fill_level", Value: round(c.fillLevel), Unit: "%"},
			{Type: "temperature", Value: round(temperature), Unit: "C"},
			{Type: "battery", Value: round(c.battery), Unit: "%"},
		},
	}
}

// Truck is a simulated collection vehicle on route.
type Truck struct {
	Plate     string
	Driver    string
	Latitude  float64
	Longitude float64

	heading float64
}

// NewTruck creates a truck near the given depot position.
func NewTruck() *Truck {
	return &Truck{
		Plate:     gofakeit.LetterN(3) + "-" + gofakeit.DigitN(4),
		Driver:    gofakeit.Name(),
		Latitude:  gofakeit.Latitude(),
		Longitude: gofakeit.Longitude(),
		heading:   rand.Float64() * 2 * math.Pi, // #nosec G404 - simulation data
	}
}

// NextPing moves the truck along its route and returns the GPS ping.
// Movement is a random walk with momentum, roughly street-speed sized steps.
func (t *Truck) NextPing(now time.Time) *wire.LocationPing {
	t.heading += (rand.Float64() - 0.5) * 0.6
	step := 0.0005 + rand.Float64()*0.001

	t.Latitude += math.Cos(t.heading) * step
	t.Longitude += math.Sin(t.heading) * step

	// Keep coordinates on the globe.
	t.Latitude = math.Max(-90, math.Min(90, t.Latitude))
	if t.Longitude > 180 {
		t.Longitude -= 360
	} else if t.Longitude < -180 {
		t.Longitude += 360
	}

	return &wire.LocationPing{
		VehicleID: t.Plate,
		Latitude:  math.Round(t.Latitude*1e6) / 1e6,
		Longitude: math.Round(t.Longitude*1e6) / 1e6,
		Timestamp: now.Unix(),
	}
}
