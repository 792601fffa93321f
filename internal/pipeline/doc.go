// Package pipeline runs lane detection with online camera self-calibration.
//
// Responsibilities: per-frame lane line fitting in the image, vanishing point
// estimation, pitch/yaw sample accumulation, projection grid rebuilds on each
// committed calibration, and lane polynomial fitting on the road plane.
// Key types: CalibratedLaneDetector, Config, Result, Observer.
//
// Frame flow:
//
//	Detect -> FitLine(left), FitLine(right) -> Intersect -> EstimateAngles
//	       -> Accumulator.AddSample -> (flush) RebuildGeometry
//	       -> PolyFitter.Fit(left), PolyFitter.Fit(right)
//
// Polynomial fitting runs on every frame whether or not a calibration has
// been committed yet. Geometric degeneracies on a frame (missing evidence,
// poor line fit, parallel lines) skip that frame's sample and are counted in
// Stats; only a singular intrinsic matrix or a detector failure is returned
// as an error.
package pipeline
