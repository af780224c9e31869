package deviceendpoint

import (
	"math/rand/v2"
	"strconv"
)

// sensorReading is shared by the three sensor categories this fabric
// simulates: each reports a single randomized reading as a property, no
// actuator actions accepted.
type sensorReading struct {
	key  string
	low  int
	high int

	value int
}

func newSensorReading(key string, low, high int) *sensorReading {
	r := &sensorReading{key: key, low: low, high: high}
	r.randomize()
	return r
}

func (s *sensorReading) properties() map[string]string {
	return map[string]string{s.key: strconv.Itoa(s.value)}
}

func (s *sensorReading) randomize() {
	s.value = s.low + rand.IntN(s.high-s.low+1)
}

// NewFartDetectorState reports a methane concentration reading (ppm).
func NewFartDetectorState() *sensorReading { return newSensorReading("ppm", 0, 400) }

// NewToiletState reports an occupancy flag, 0 or 1.
func NewToiletState() *sensorReading { return newSensorReading("occupied", 0, 1) }

// NewWaterLeakState reports a moisture reading, 0-1000.
func NewWaterLeakState() *sensorReading { return newSensorReading("moisture", 0, 1000) }
