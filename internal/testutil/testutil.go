// Package testutil provides shared test utilities and fixtures.
//
// Mask fixtures are returned as raw row-major []float64 so that any package,
// including the calibration core, can use them without an import cycle.
package testutil

import (
	"math"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta fails the test if got differs from want by more than delta.
func AssertInDelta(t *testing.T, got, want, delta float64, what string) {
	t.Helper()
	if math.Abs(got-want) > delta {
		t.Errorf("%s = %.12g, want %.12g (±%g)", what, got, want, delta)
	}
}

// UniformMask returns a width*height mask with every pixel set to c.
func UniformMask(width, height int, c float64) []float64 {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = c
	}
	return data
}

// RasterLine returns a width*height mask with one pixel per row, from row
// cut downwards, on the line through (u0,v0) with slope dv/du. Every lit
// pixel has confidence c; pixels falling outside the image are skipped.
func RasterLine(width, height, cut int, u0, v0, slope, c float64) []float64 {
	data := make([]float64, width*height)
	for v := cut; v < height; v++ {
		u := int(math.Round(u0 + (float64(v)-v0)/slope))
		if u < 0 || u >= width {
			continue
		}
		data[v*width+u] = c
	}
	return data
}

// LaneMasks returns a left and right mask whose lines meet at (u0,v0).
// Lines have slopes -1 (left) and +1 (right), so with integer (u0,v0) every
// lit pixel lies exactly on its line.
func LaneMasks(width, height, cut int, u0, v0 float64) (left, right []float64) {
	return RasterLine(width, height, cut, u0, v0, -1, 0.9),
		RasterLine(width, height, cut, u0, v0, 1, 0.9)
}
