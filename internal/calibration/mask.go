package calibration

import (
	"errors"
	"fmt"
)

// ErrMaskShape is returned when a mask does not match the pixel grid.
var ErrMaskShape = errors.New("probability mask does not match pixel grid")

// ProbabilityMask is a row-major grid of per-pixel confidences in [0,1].
// A mask is produced once per frame and treated as read-only afterwards.
type ProbabilityMask struct {
	Width  int
	Height int
	Data   []float64
}

// NewProbabilityMask returns a zeroed mask.
func NewProbabilityMask(width, height int) ProbabilityMask {
	return ProbabilityMask{Width: width, Height: height, Data: make([]float64, width*height)}
}

// MaskFromData wraps row-major confidences, checking the length.
func MaskFromData(width, height int, data []float64) (ProbabilityMask, error) {
	if width <= 0 || height <= 0 {
		return ProbabilityMask{}, fmt.Errorf("mask size must be positive, got %dx%d", width, height)
	}
	if len(data) != width*height {
		return ProbabilityMask{}, fmt.Errorf("mask data has %d values, want %d", len(data), width*height)
	}
	return ProbabilityMask{Width: width, Height: height, Data: data}, nil
}

// At returns the confidence at column u, row v.
func (m ProbabilityMask) At(u, v int) float64 {
	return m.Data[v*m.Width+u]
}

// Set stores a confidence; only for use while the mask is being built.
func (m ProbabilityMask) Set(u, v int, c float64) {
	m.Data[v*m.Width+u] = c
}

// RowsFrom returns the flattened confidences of rows cut..Height-1.
func (m ProbabilityMask) RowsFrom(cut int) []float64 {
	if cut >= m.Height {
		return nil
	}
	return m.Data[cut*m.Width:]
}

// PixelGrid lists the (u,v) coordinates of rows Cut..Height-1, u varying
// fastest. Its ordering matches ProbabilityMask.RowsFrom(Cut).
type PixelGrid struct {
	Width  int
	Height int
	Cut    int
	U      []float64
	V      []float64
}

// NewPixelGrid precomputes the grid for an image size and cutoff row.
func NewPixelGrid(width, height, cut int) PixelGrid {
	if cut < 0 {
		cut = 0
	}
	if cut > height {
		cut = height
	}
	n := (height - cut) * width
	g := PixelGrid{
		Width:  width,
		Height: height,
		Cut:    cut,
		U:      make([]float64, 0, n),
		V:      make([]float64, 0, n),
	}
	for v := cut; v < height; v++ {
		for u := 0; u < width; u++ {
			g.U = append(g.U, float64(u))
			g.V = append(g.V, float64(v))
		}
	}
	return g
}

// Len returns the number of grid points.
func (g PixelGrid) Len() int { return len(g.U) }

// Matches reports whether m has the image size the grid was built for.
func (g PixelGrid) Matches(m ProbabilityMask) error {
	if m.Width != g.Width || m.Height != g.Height || len(m.Data) != m.Width*m.Height {
		return fmt.Errorf("%w: mask %dx%d (%d values), grid %dx%d",
			ErrMaskShape, m.Width, m.Height, len(m.Data), g.Width, g.Height)
	}
	return nil
}
