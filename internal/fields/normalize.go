package fields

import "math"

// Normalize rescales v from [lo, hi] into [0, 1] and clips the result.
// NaN stays NaN so missing values can be drawn as no-data. A degenerate range
// (hi == lo) maps everything to 0.
func Normalize(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	span := hi - lo
	if span == 0 || math.IsNaN(span) {
		return 0
	}
	return clip((v-lo)/span, 0, 1)
}

// DataRange returns the min and max of the non-NaN values. ok is false when
// every value is missing.
func DataRange(values []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
