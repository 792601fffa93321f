package pipeline

import (
	"fmt"

	"github.com/banshee-data/lane-calibration/internal/calibration"
	"github.com/banshee-data/lane-calibration/internal/config"
	"github.com/banshee-data/lane-calibration/internal/geometry"
)

// Config holds the calibration parameters of a CalibratedLaneDetector.
type Config struct {
	// CalibCutV is the first image row used for image-space line fitting.
	// Rows above it are sky and horizon clutter.
	CalibCutV int

	Fit calibration.FitParams

	// ParallelEpsilon is the slope difference at or below which the two lane
	// lines are treated as parallel. Zero means exact equality.
	ParallelEpsilon float64

	// BatchSize is the number of samples that must be exceeded before a
	// calibration is committed.
	BatchSize int

	// GridDistanceM is the road distance of the farthest row used for lane
	// polynomial fitting.
	GridDistanceM float64
}

// DefaultConfig returns the reference calibration parameters.
func DefaultConfig() Config {
	return Config{
		CalibCutV:       200,
		Fit:             calibration.DefaultFitParams(),
		ParallelEpsilon: 0,
		BatchSize:       calibration.DefaultBatchSize,
		GridDistanceM:   60,
	}
}

// ConfigFromCalibration maps a loaded calibration config onto pipeline
// parameters. Unset fields take their defaults.
func ConfigFromCalibration(c *config.CalibrationConfig) Config {
	return Config{
		CalibCutV: c.GetCalibCutV(),
		Fit: calibration.FitParams{
			ConfidenceThreshold: c.GetConfidenceThreshold(),
			MaxMeanResidual:     c.GetMaxMeanResidual(),
		},
		ParallelEpsilon: c.GetParallelEpsilon(),
		BatchSize:       c.GetBatchSize(),
		GridDistanceM:   c.GetGridDistanceM(),
	}
}

// GeometryFromCalibration returns the uncalibrated camera described by c.
// Pitch and yaw are left at zero; the detector estimates them.
func GeometryFromCalibration(c *config.CalibrationConfig) geometry.CameraGeometry {
	return geometry.CameraGeometry{
		HeightM:        c.GetCameraHeightM(),
		RollDeg:        c.GetCameraRollDeg(),
		FieldOfViewDeg: c.GetFieldOfViewDeg(),
		ImageWidth:     c.GetImageWidth(),
		ImageHeight:    c.GetImageHeight(),
	}
}

func (c Config) validate(g geometry.CameraGeometry) error {
	if c.CalibCutV < 0 || c.CalibCutV >= g.ImageHeight {
		return fmt.Errorf("calib_cut_v %d outside image rows [0, %d)", c.CalibCutV, g.ImageHeight)
	}
	if c.ParallelEpsilon < 0 {
		return fmt.Errorf("parallel_epsilon must be non-negative, got %f", c.ParallelEpsilon)
	}
	if c.GridDistanceM <= 0 {
		return fmt.Errorf("grid_distance_m must be positive, got %f", c.GridDistanceM)
	}
	return nil
}
