package pipeline

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/banshee-data/lane-calibration/internal/calibration"
	"github.com/banshee-data/lane-calibration/internal/detector"
	"github.com/banshee-data/lane-calibration/internal/geometry"
	"github.com/banshee-data/lane-calibration/internal/imageio"
	"github.com/banshee-data/lane-calibration/internal/lanefit"
	"github.com/banshee-data/lane-calibration/internal/monitoring"
)

// Observer receives calibration activity. Implementations must not block.
type Observer interface {
	ObserveSample(frame int, s calibration.AngleSample)
	ObserveFlush(frame int, ev calibration.FlushEvent)
}

// Result is the outcome of one frame.
type Result struct {
	Frame int // 1-based

	Left, Right     lanefit.Poly
	LeftOK, RightOK bool

	LeftMask, RightMask calibration.ProbabilityMask
	Raw                 []byte

	LeftLine, RightLine calibration.FitResult
	VanishingPoint      *calibration.VanishingPoint
	Sample              *calibration.AngleSample
	Flush               *calibration.FlushEvent
}

type fitOutcome int

const (
	fitOK fitOutcome = iota
	fitMissing
	fitPoor
)

func outcomeOf(r calibration.FitResult) fitOutcome {
	switch r.Status {
	case calibration.FitOK:
		return fitOK
	case calibration.FitInsufficientEvidence:
		return fitMissing
	default:
		return fitPoor
	}
}

// CalibratedLaneDetector wraps a LaneDetector and estimates the camera's
// pitch and yaw from the vanishing point of the detected lane lines.
// Frames are processed one at a time.
type CalibratedLaneDetector struct {
	mu sync.Mutex

	cfg       Config
	det       detector.LaneDetector
	observers []Observer

	geom geometry.CameraGeometry
	grid geometry.ProjectionGrid
	uv   calibration.PixelGrid
	acc  *calibration.Accumulator
	poly *lanefit.PolyFitter

	frame int
	stats Stats
}

// New builds a calibrated detector for cameras described by geom. The
// initial geometry has pitch and yaw reset to zero until the first
// calibration is committed.
func New(cfg Config, geom geometry.CameraGeometry, det detector.LaneDetector, observers ...Observer) (*CalibratedLaneDetector, error) {
	if det == nil {
		return nil, fmt.Errorf("lane detector is required")
	}
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("invalid camera geometry: %w", err)
	}
	if err := cfg.validate(geom); err != nil {
		return nil, err
	}

	initial, grid, err := calibration.RebuildGeometry(geom, 0, 0, cfg.GridDistanceM)
	if err != nil {
		return nil, err
	}

	d := &CalibratedLaneDetector{
		cfg:       cfg,
		det:       det,
		observers: observers,
		geom:      initial,
		grid:      grid,
		uv:        calibration.NewPixelGrid(geom.ImageWidth, geom.ImageHeight, cfg.CalibCutV),
		acc:       calibration.NewAccumulator(cfg.BatchSize),
		poly:      lanefit.NewPolyFitter(cfg.Fit.ConfidenceThreshold),
	}
	return d, nil
}

// RunAndViz processes one frame and returns the lane polynomials together
// with the masks and intermediate results. img may be nil when the detector
// does not need it (replayed model output).
func (d *CalibratedLaneDetector) RunAndViz(ctx context.Context, img image.Image) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	det, err := d.det.Detect(ctx, img)
	if err != nil {
		return Result{}, err
	}
	if err := d.uv.Matches(det.Left); err != nil {
		return Result{}, fmt.Errorf("left mask: %w", err)
	}
	if err := d.uv.Matches(det.Right); err != nil {
		return Result{}, fmt.Errorf("right mask: %w", err)
	}

	d.frame++
	d.stats.Frames++
	res := Result{
		Frame:     d.frame,
		LeftMask:  det.Left,
		RightMask: det.Right,
		Raw:       det.Raw,
	}

	if err := d.calibrate(&res); err != nil {
		return Result{}, err
	}

	res.Left, res.LeftOK = d.poly.Fit(det.Left, d.grid)
	res.Right, res.RightOK = d.poly.Fit(det.Right, d.grid)
	if res.LeftOK {
		d.stats.LeftPolys++
	}
	if res.RightOK {
		d.stats.RightPolys++
	}
	return res, nil
}

// calibrate runs the image-space half of the frame and fills the
// calibration fields of res. Only a singular intrinsic matrix is an error.
func (d *CalibratedLaneDetector) calibrate(res *Result) error {
	var err error
	if res.LeftLine, err = calibration.FitLine(res.LeftMask, d.uv, d.cfg.Fit); err != nil {
		return err
	}
	if res.RightLine, err = calibration.FitLine(res.RightMask, d.uv, d.cfg.Fit); err != nil {
		return err
	}
	if !res.LeftLine.OK() || !res.RightLine.OK() {
		d.stats.countFit(outcomeOf(res.LeftLine))
		d.stats.countFit(outcomeOf(res.RightLine))
		return nil
	}

	vp, ok := calibration.Intersect(res.LeftLine.Line, res.RightLine.Line, d.cfg.ParallelEpsilon)
	if !ok {
		d.stats.Parallel++
		return nil
	}
	res.VanishingPoint = &vp

	sample, err := calibration.EstimateAngles(vp, d.geom.IntrinsicMatrix())
	if err != nil {
		return err
	}
	res.Sample = &sample
	d.stats.Samples++
	for _, o := range d.observers {
		o.ObserveSample(res.Frame, sample)
	}

	ev, flushed := d.acc.AddSample(sample)
	if !flushed {
		return nil
	}
	res.Flush = &ev
	d.stats.Flushes++
	d.commit(res.Frame, ev)
	return nil
}

func (d *CalibratedLaneDetector) commit(frame int, ev calibration.FlushEvent) {
	next, grid, err := calibration.RebuildGeometry(d.geom, ev.PitchDeg, ev.YawDeg, d.cfg.GridDistanceM)
	if err != nil {
		d.stats.GeometryErrors++
		monitoring.Logf("calibration %d: keeping previous geometry: %v", ev.Index, err)
	} else {
		d.geom, d.grid = next, grid
	}

	monitoring.Noticef("yaw, pitch = %v %v", ev.YawDeg, ev.PitchDeg)
	monitoring.Logf("calibration %d committed at frame %d from %d samples: pitch=%.4f yaw=%.4f deg (cut_v=%d)",
		ev.Index, frame, ev.Samples, ev.PitchDeg, ev.YawDeg, d.grid.CutV)

	for _, o := range d.observers {
		o.ObserveFlush(frame, ev)
	}
}

// Run processes one frame and returns the lane polynomials; a nil
// polynomial means that lane was not found.
func (d *CalibratedLaneDetector) Run(ctx context.Context, img image.Image) (left, right *lanefit.Poly, err error) {
	res, err := d.RunAndViz(ctx, img)
	if err != nil {
		return nil, nil, err
	}
	if res.LeftOK {
		left = &res.Left
	}
	if res.RightOK {
		right = &res.Right
	}
	return left, right, nil
}

// RunPath loads the image at path and runs it.
func (d *CalibratedLaneDetector) RunPath(ctx context.Context, path string) (left, right *lanefit.Poly, err error) {
	img, err := imageio.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return d.Run(ctx, img)
}

// Success reports whether at least one calibration has been committed.
func (d *CalibratedLaneDetector) Success() bool { return d.acc.Success() }

// State returns the accumulator state.
func (d *CalibratedLaneDetector) State() calibration.State { return d.acc.State() }

// Geometry returns the camera geometry currently used for projection.
func (d *CalibratedLaneDetector) Geometry() geometry.CameraGeometry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.geom
}

// ProjectionGrid returns the grid currently used for polynomial fitting.
func (d *CalibratedLaneDetector) ProjectionGrid() geometry.ProjectionGrid {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.grid
}

// Stats returns a snapshot of the frame counters.
func (d *CalibratedLaneDetector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Reset discards pending samples. Committed calibrations are kept.
func (d *CalibratedLaneDetector) Reset() { d.acc.Reset() }
