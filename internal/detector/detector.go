// Package detector provides lane probability sources.
//
// The calibration pipeline depends only on LaneDetector. Implementations
// wrap an external segmentation service or replay recorded model output.
package detector

import (
	"context"
	"image"
	"image/color"

	"github.com/banshee-data/lane-calibration/internal/calibration"
)

// Detection is one frame of lane segmentation output.
type Detection struct {
	Raw   []byte // model output as received, for diagnostics
	Left  calibration.ProbabilityMask
	Right calibration.ProbabilityMask
}

// LaneDetector turns a camera frame into left and right lane probability maps
// matching the frame's dimensions.
type LaneDetector interface {
	Detect(ctx context.Context, img image.Image) (Detection, error)
}

// MaskFromImage converts a grayscale probability map (0..255) into a mask.
func MaskFromImage(img image.Image) calibration.ProbabilityMask {
	b := img.Bounds()
	m := calibration.NewProbabilityMask(b.Dx(), b.Dy())
	for v := 0; v < b.Dy(); v++ {
		for u := 0; u < b.Dx(); u++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+u, b.Min.Y+v)).(color.Gray)
			m.Set(u, v, float64(g.Y)/255)
		}
	}
	return m
}
