package deviceendpoint

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSensorReadingStaysWithinBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := NewFartDetectorState()
		ppm, ok := s.properties()["ppm"]
		require.True(t, ok)
		require.NotEmpty(t, ppm)
		n, err := strconv.Atoi(ppm)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 0)
		require.LessOrEqual(t, n, 400)
	}
}

func TestSensorRandomizeChangesProperties(t *testing.T) {
	s := newSensorReading("value", 0, 1_000_000)
	before := s.value
	changed := false
	for i := 0; i < 20; i++ {
		s.randomize()
		if s.value != before {
			changed = true
			break
		}
	}
	require.True(t, changed, "randomize should eventually produce a different value across 20 draws")
}

func TestToiletStateReportsOccupiedFlag(t *testing.T) {
	s := NewToiletState()
	v, ok := s.properties()["occupied"]
	require.True(t, ok)
	require.Contains(t, []string{"0", "1"}, v)
}
