package reducer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicityDetectorFindsDominantPeriod(t *testing.T) {
	t.Parallel()

	series := make([]float64, 40)
	for i := range series {
		series[i] = math.Sin(2 * math.Pi * float64(i) / 8)
	}

	result := NewPeriodicityDetector().Detect(series, 0)

	require.True(t, result.Found)
	assert.Equal(t, 8, result.Lag)
}

func TestPeriodicityDetectorNoSignalOnNoise(t *testing.T) {
	t.Parallel()

	// A short constant-ish low-variance series should not report a period.
	series := []float64{1, 1, 1, 1, 1, 1}

	result := NewPeriodicityDetector().Detect(series, 0)

	assert.False(t, result.Found)
}

func TestPeriodicityDetectorShortSeriesNotFound(t *testing.T) {
	t.Parallel()

	result := NewPeriodicityDetector().Detect([]float64{1, 2}, 0)

	assert.False(t, result.Found)
}
