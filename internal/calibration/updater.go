package calibration

import (
	"fmt"

	"github.com/banshee-data/lane-calibration/internal/geometry"
)

// RebuildGeometry returns old with pitch and yaw replaced, together with the
// projection grid derived from the new geometry. old is never modified.
func RebuildGeometry(old geometry.CameraGeometry, pitchDeg, yawDeg, gridDistanceM float64) (geometry.CameraGeometry, geometry.ProjectionGrid, error) {
	next := old.WithAngles(pitchDeg, yawDeg)
	grid, err := next.PrecomputeGrid(gridDistanceM)
	if err != nil {
		return old, geometry.ProjectionGrid{}, fmt.Errorf("precompute projection grid: %w", err)
	}
	return next, grid, nil
}
