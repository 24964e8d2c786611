package fields

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_FixedTemperatureRange(t *testing.T) {
	assert.InDelta(t, 0.675, Normalize(300, -240, 560), 1e-12)
}

func TestNormalize_ClipsOutsideRange(t *testing.T) {
	tests := []struct {
		name     string
		v        float64
		expected float64
	}{
		{"below min", -500, 0},
		{"at min", -240, 0},
		{"at max", 560, 1},
		{"above max", 900, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.v, -240, 560))
		})
	}
}

func TestNormalize_InRangeStaysInUnitInterval(t *testing.T) {
	for v := -240.0; v <= 560; v += 7.3 {
		n := Normalize(v, -240, 560)
		assert.GreaterOrEqual(t, n, 0.0)
		assert.LessOrEqual(t, n, 1.0)
	}
}

func TestNormalize_IdempotentOnClippedValues(t *testing.T) {
	for _, v := range []float64{0, 0.1, 0.5, 0.675, 0.99, 1} {
		once := Normalize(v, 0, 1)
		assert.Equal(t, once, Normalize(once, 0, 1))
		assert.Equal(t, v, once)
	}
}

func TestNormalize_NaNAndDegenerateRange(t *testing.T) {
	assert.True(t, math.IsNaN(Normalize(math.NaN(), 0, 1)))
	assert.Equal(t, 0.0, Normalize(5, 3, 3))
}

func TestDataRange(t *testing.T) {
	lo, hi, ok := DataRange([]float64{math.NaN(), 4, -2, 9})
	assert.True(t, ok)
	assert.Equal(t, -2.0, lo)
	assert.Equal(t, 9.0, hi)

	_, _, ok = DataRange([]float64{math.NaN()})
	assert.False(t, ok)

	_, _, ok = DataRange(nil)
	assert.False(t, ok)
}
