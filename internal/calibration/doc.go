// Package calibration estimates camera pitch and yaw from lane markings.
//
// Responsibilities: straight-line fitting of lane probability masks,
// vanishing point intersection, back-projection of the vanishing point into
// camera angles, and batch accumulation of per-frame angle samples into a
// committed calibration.
// Key types: ProbabilityMask, PixelGrid, Line, AngleSample, Accumulator.
//
// Every per-frame failure (no evidence, poor fit, parallel lines) is reported
// as a status, never as an error. The only error is ErrSingularIntrinsicMatrix,
// which means the camera configuration itself is corrupt.
//
// No I/O is allowed in this package.
package calibration
