// Package lanefit fits lane boundary polynomials on the road plane.
//
// The fitter runs on every frame, independent of calibration state. Its
// accuracy depends on the projection grid, which is rebuilt whenever the
// camera calibration is committed.
package lanefit

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lane-calibration/internal/calibration"
	"github.com/banshee-data/lane-calibration/internal/geometry"
)

// DefaultDegree is the polynomial degree used for lane boundaries.
const DefaultDegree = 3

// Poly is y(x) = Coeffs[0] + Coeffs[1]*x + ... in ISO 8855 road coordinates:
// x metres ahead, y metres to the left.
type Poly struct {
	Coeffs []float64
}

// Eval evaluates the polynomial at x.
func (p Poly) Eval(x float64) float64 {
	y := 0.0
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		y = y*x + p.Coeffs[i]
	}
	return y
}

// PolyFitter fits a weighted polynomial to the road positions of confident
// mask pixels.
type PolyFitter struct {
	Degree              int
	ConfidenceThreshold float64 // strict lower bound on pixel confidence
}

// NewPolyFitter returns a cubic fitter.
func NewPolyFitter(confidenceThreshold float64) *PolyFitter {
	return &PolyFitter{Degree: DefaultDegree, ConfidenceThreshold: confidenceThreshold}
}

// Fit returns the lane polynomial for mask. ok is false when fewer than
// Degree+1 pixels qualify, the mask does not match the grid, or the system
// is too ill-conditioned to solve.
func (f *PolyFitter) Fit(mask calibration.ProbabilityMask, grid geometry.ProjectionGrid) (Poly, bool) {
	if mask.Width != grid.Width {
		return Poly{}, false
	}
	probs := mask.RowsFrom(grid.CutV)
	if len(probs) != len(grid.Points) {
		return Poly{}, false
	}

	var xs, ys, ws []float64
	for i, p := range probs {
		if p <= f.ConfidenceThreshold {
			continue
		}
		pt := grid.Points[i]
		if math.IsNaN(pt.X) || math.IsNaN(pt.Y) {
			continue
		}
		xs = append(xs, pt.X)
		ys = append(ys, pt.Y)
		ws = append(ws, p)
	}

	cols := f.Degree + 1
	n := len(xs)
	if n < cols {
		return Poly{}, false
	}

	// Columns are scaled to unit norm before solving; x spans two orders of
	// magnitude and x^3 would otherwise dominate the conditioning.
	a := mat.NewDense(n, cols, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		xp := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, ws[i]*xp)
			xp *= xs[i]
		}
		b.SetVec(i, ws[i]*ys[i])
	}
	scale := make([]float64, cols)
	for j := 0; j < cols; j++ {
		scale[j] = mat.Norm(a.ColView(j), 2)
		if scale[j] == 0 {
			return Poly{}, false
		}
		for i := 0; i < n; i++ {
			a.Set(i, j, a.At(i, j)/scale[j])
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		return Poly{}, false
	}

	coeffs := make([]float64, cols)
	for j := range coeffs {
		coeffs[j] = c.AtVec(j) / scale[j]
	}
	return Poly{Coeffs: coeffs}, true
}
