package calibration

import (
	"gonum.org/v1/gonum/mat"
)

// Line is v = Slope*u + Intercept in image pixel coordinates.
type Line struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line at column u.
func (l Line) At(u float64) float64 {
	return l.Slope*u + l.Intercept
}

// FitStatus classifies the outcome of a line fit.
type FitStatus int

const (
	// FitOK means the line is usable.
	FitOK FitStatus = iota
	// FitInsufficientEvidence means no pixel cleared the confidence threshold.
	FitInsufficientEvidence
	// FitPoorQuality means the mean residual exceeded the quality threshold.
	FitPoorQuality
)

func (s FitStatus) String() string {
	switch s {
	case FitOK:
		return "ok"
	case FitInsufficientEvidence:
		return "insufficient_evidence"
	case FitPoorQuality:
		return "poor_fit_quality"
	default:
		return "unknown"
	}
}

// FitParams holds the line fitting thresholds.
type FitParams struct {
	ConfidenceThreshold float64 // strict lower bound on pixel confidence
	MaxMeanResidual     float64 // squared pixels
}

// DefaultFitParams returns production thresholds.
func DefaultFitParams() FitParams {
	return FitParams{ConfidenceThreshold: 0.3, MaxMeanResidual: 15}
}

// FitResult is the outcome of FitLine. Line is only meaningful when
// Status is FitOK.
type FitResult struct {
	Line         Line
	Status       FitStatus
	Points       int
	MeanResidual float64
}

// OK reports whether the fit produced a usable line.
func (r FitResult) OK() bool { return r.Status == FitOK }

// FitLine fits v as a function of u to the mask pixels in the grid region
// whose confidence is strictly above the threshold, weighting each pixel by
// its confidence.
//
// Each row of the least-squares system is scaled by the pixel weight, so the
// residual that is thresholded is sum((w*(v - v_fit))^2) / n.
//
// A lane that is vertical in the image cannot be expressed as v(u). Nearly
// vertical lanes fit with a very large slope. When every surviving pixel
// shares one column (including the single-pixel case) the fit falls back to
// slope 0 and the weighted mean row, so a single pixel yields a horizontal
// line through it with zero residual.
func FitLine(mask ProbabilityMask, grid PixelGrid, params FitParams) (FitResult, error) {
	if err := grid.Matches(mask); err != nil {
		return FitResult{}, err
	}
	probs := mask.RowsFrom(grid.Cut)

	var us, vs, ws []float64
	for i, p := range probs {
		if p > params.ConfidenceThreshold {
			us = append(us, grid.U[i])
			vs = append(vs, grid.V[i])
			ws = append(ws, p)
		}
	}
	n := len(us)
	if n == 0 {
		return FitResult{Status: FitInsufficientEvidence}, nil
	}

	line, sse, ok := weightedLineFit(us, vs, ws)
	if !ok {
		return FitResult{Status: FitPoorQuality, Points: n}, nil
	}

	res := FitResult{Line: line, Points: n, MeanResidual: sse / float64(n)}
	if res.MeanResidual > params.MaxMeanResidual {
		res.Status = FitPoorQuality
		return res, nil
	}
	res.Status = FitOK
	return res, nil
}

// weightedLineFit returns the weighted least-squares line and its weighted
// sum of squared residuals. ok is false when the solver rejects the system.
func weightedLineFit(us, vs, ws []float64) (Line, float64, bool) {
	n := len(us)

	constantU := true
	for _, u := range us[1:] {
		if u != us[0] {
			constantU = false
			break
		}
	}
	if constantU {
		// Rank-deficient system. A min-norm solver would report no residual
		// and accept any single column; grading the horizontal fallback by its
		// residual rejects tall columns instead.
		var sw2, sw2v float64
		for i := range vs {
			w2 := ws[i] * ws[i]
			sw2 += w2
			sw2v += w2 * vs[i]
		}
		c := sw2v / sw2
		var sse float64
		for i := range vs {
			r := ws[i] * (vs[i] - c)
			sse += r * r
		}
		return Line{Slope: 0, Intercept: c}, sse, true
	}

	a := mat.NewDense(n, 2, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, ws[i]*us[i])
		a.Set(i, 1, ws[i])
		b.SetVec(i, ws[i]*vs[i])
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return Line{}, 0, false
	}

	var fitted mat.VecDense
	fitted.MulVec(a, &x)
	var sse float64
	for i := 0; i < n; i++ {
		r := b.AtVec(i) - fitted.AtVec(i)
		sse += r * r
	}
	return Line{Slope: x.AtVec(0), Intercept: x.AtVec(1)}, sse, true
}
