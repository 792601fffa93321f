package calibration

import "math"

// VanishingPoint is an image position in pixels.
type VanishingPoint struct {
	U float64
	V float64
}

// Intersect returns the crossing point of two lines. ok is false when the
// slopes differ by no more than epsilon; epsilon 0 means exact equality.
// A non-finite result (from NaN or infinite inputs) is also rejected.
func Intersect(a, b Line, epsilon float64) (vp VanishingPoint, ok bool) {
	if math.Abs(a.Slope-b.Slope) <= epsilon {
		return VanishingPoint{}, false
	}
	u := (b.Intercept - a.Intercept) / (a.Slope - b.Slope)
	v := a.Slope*u + a.Intercept
	if math.IsNaN(u) || math.IsNaN(v) || math.IsInf(u, 0) || math.IsInf(v, 0) {
		return VanishingPoint{}, false
	}
	return VanishingPoint{U: u, V: v}, true
}
