package vector

import (
	"math"
	"slices"

	"github.com/hupe1980/vecgo/distance"
)

// Normalize returns a unit-length copy of v.
// A zero vector cannot be normalized; it is returned as an unscaled copy
// and ok is false. So is a vector with an infinite or NaN component.
func Normalize(v []float32) (normalized []float32, ok bool) {
	out := slices.Clone(v)
	if out == nil {
		out = []float32{}
	}

	// Scale into [-1, 1] first so the float32 sum of squares cannot
	// overflow for large components or underflow for tiny ones.
	var maxAbs float32
	for _, x := range out {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return out, false
		}
		maxAbs = max(maxAbs, float32(math.Abs(float64(x))))
	}
	if maxAbs == 0 {
		return out, false
	}
	for i := range out {
		out[i] /= maxAbs
	}

	if !distance.NormalizeL2InPlace(out) {
		return slices.Clone(v), false
	}
	return out, true
}

// Dot calculates the inner product of two vectors of equal length.
func Dot(a, b []float32) float32 {
	return distance.Dot(a, b)
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}
