// Package geometry models a forward-facing pinhole camera mounted above a
// planar road.
//
// Responsibilities: intrinsic matrix from field of view, road-to-camera
// rotation from roll/pitch/yaw, and back-projection of image pixels onto the
// road plane for downstream lane polynomial fitting.
// Key types: CameraGeometry, ProjectionGrid.
//
// Camera frame convention: X=right, Y=down, Z=forward. The road frame shares
// the convention and sits on the road surface below the camera; road points
// are reported in ISO 8855 (X=forward, Y=left).
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/lane-calibration/internal/units"
)

// CameraGeometry is an immutable description of the camera pose and lens.
// Methods never modify the receiver; WithAngles returns a new value.
type CameraGeometry struct {
	HeightM        float64 // mounting height above the road
	RollDeg        float64
	PitchDeg       float64
	YawDeg         float64
	FieldOfViewDeg float64 // horizontal
	ImageWidth     int
	ImageHeight    int
}

// DefaultCameraGeometry returns the geometry of the reference vehicle camera.
func DefaultCameraGeometry() CameraGeometry {
	return CameraGeometry{
		HeightM:        1.3,
		RollDeg:        0,
		PitchDeg:       -5,
		YawDeg:         0,
		FieldOfViewDeg: 45,
		ImageWidth:     1024,
		ImageHeight:    512,
	}
}

// Validate checks that the geometry describes a usable camera.
func (g CameraGeometry) Validate() error {
	if g.ImageWidth <= 0 || g.ImageHeight <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", g.ImageWidth, g.ImageHeight)
	}
	if g.FieldOfViewDeg <= 0 || g.FieldOfViewDeg >= 180 {
		return fmt.Errorf("field of view must be in (0, 180) degrees, got %f", g.FieldOfViewDeg)
	}
	if g.HeightM <= 0 {
		return fmt.Errorf("camera height must be positive, got %f", g.HeightM)
	}
	return nil
}

// WithAngles returns a copy of g with pitch and yaw replaced.
func (g CameraGeometry) WithAngles(pitchDeg, yawDeg float64) CameraGeometry {
	g.PitchDeg = pitchDeg
	g.YawDeg = yawDeg
	return g
}

// IntrinsicMatrix returns K for a distortion-free pinhole camera with square
// pixels and the principal point at the image centre.
func (g CameraGeometry) IntrinsicMatrix() *mat.Dense {
	fov := units.DegToRad(g.FieldOfViewDeg)
	alpha := (float64(g.ImageWidth) / 2) / math.Tan(fov/2)
	cu := float64(g.ImageWidth) / 2
	cv := float64(g.ImageHeight) / 2
	return mat.NewDense(3, 3, []float64{
		alpha, 0, cu,
		0, alpha, cv,
		0, 0, 1,
	})
}

// RoadToCamRotation returns R such that v_cam = R * v_road.
// R = Rz(roll) * Ry(-yaw) * Rx(-pitch); its third column is the road's
// forward direction seen from the camera: (-cos p sin y, sin p, cos p cos y).
func (g CameraGeometry) RoadToCamRotation() *mat.Dense {
	roll := units.DegToRad(g.RollDeg)
	pitch := units.DegToRad(g.PitchDeg)
	yaw := units.DegToRad(g.YawDeg)

	cr, sr := math.Cos(roll), math.Sin(roll)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)

	rz := mat.NewDense(3, 3, []float64{
		cr, -sr, 0,
		sr, cr, 0,
		0, 0, 1,
	})
	ry := mat.NewDense(3, 3, []float64{
		cy, 0, -sy,
		0, 1, 0,
		sy, 0, cy,
	})
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cp, sp,
		0, -sp, cp,
	})

	var r mat.Dense
	r.Product(rz, ry, rx)
	return &r
}

// projector caches the matrices needed to map pixels to the road.
type projector struct {
	kinv   [9]float64
	rcr    [9]float64 // cam -> road
	normal [3]float64 // road normal in camera frame
	height float64
}

func (g CameraGeometry) newProjector() (*projector, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	var kinv mat.Dense
	if err := kinv.Inverse(g.IntrinsicMatrix()); err != nil {
		return nil, fmt.Errorf("invert intrinsic matrix: %w", err)
	}
	rrc := g.RoadToCamRotation()

	p := &projector{height: g.HeightM}
	copy(p.kinv[:], kinv.RawMatrix().Data)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			p.rcr[i*3+j] = rrc.At(j, i)
		}
		p.normal[i] = rrc.At(i, 1)
	}
	return p, nil
}

// roadISO8855 maps pixel (u,v) to road coordinates. ok is false for pixels
// whose ray never meets the road in front of the camera.
func (p *projector) roadISO8855(u, v float64) (x, y float64, ok bool) {
	k := p.kinv
	dx := k[0]*u + k[1]*v + k[2]
	dy := k[3]*u + k[4]*v + k[5]
	dz := k[6]*u + k[7]*v + k[8]

	denom := p.normal[0]*dx + p.normal[1]*dy + p.normal[2]*dz
	if denom <= 0 {
		return 0, 0, false
	}
	s := p.height / denom
	cx, cy, cz := s*dx, s*dy, s*dz

	r := p.rcr
	roadX := r[0]*cx + r[1]*cy + r[2]*cz
	roadZ := r[6]*cx + r[7]*cy + r[8]*cz
	return roadZ, -roadX, true
}

// UVToRoadISO8855 back-projects pixel (u,v) onto the road plane and returns
// the ISO 8855 position (x forward, y left) in metres.
func (g CameraGeometry) UVToRoadISO8855(u, v float64) (x, y float64, ok bool, err error) {
	p, err := g.newProjector()
	if err != nil {
		return 0, 0, false, err
	}
	x, y, ok = p.roadISO8855(u, v)
	return x, y, ok, nil
}

// MinimumV returns the image row of the road point distM metres straight ahead.
func (g CameraGeometry) MinimumV(distM float64) float64 {
	var pc mat.VecDense
	pc.MulVec(g.RoadToCamRotation(), mat.NewVecDense(3, []float64{0, g.HeightM, distM}))

	var uv mat.VecDense
	uv.MulVec(g.IntrinsicMatrix(), &pc)
	return uv.AtVec(1) / uv.AtVec(2)
}

// RoadPoint is a road-plane position in ISO 8855 coordinates.
type RoadPoint struct {
	X float64 // forward
	Y float64 // left
}

// ProjectionGrid holds the road position of every pixel in rows
// CutV..ImageHeight-1, u varying fastest, matching a flattened mask region.
// Pixels that do not meet the road are NaN.
type ProjectionGrid struct {
	CutV   int
	Width  int
	Points []RoadPoint
}

// PrecomputeGrid derives the projection cutoff row from the road point distM
// metres ahead and projects every pixel below it onto the road.
func (g CameraGeometry) PrecomputeGrid(distM float64) (ProjectionGrid, error) {
	p, err := g.newProjector()
	if err != nil {
		return ProjectionGrid{}, err
	}

	minV := g.MinimumV(distM)
	cutV := g.ImageHeight
	if !math.IsNaN(minV) && minV < float64(g.ImageHeight) {
		cutV = int(minV) + 1
	}
	if cutV < 0 {
		cutV = 0
	}

	grid := ProjectionGrid{
		CutV:   cutV,
		Width:  g.ImageWidth,
		Points: make([]RoadPoint, 0, (g.ImageHeight-cutV)*g.ImageWidth),
	}
	for v := cutV; v < g.ImageHeight; v++ {
		for u := 0; u < g.ImageWidth; u++ {
			x, y, ok := p.roadISO8855(float64(u), float64(v))
			if !ok {
				x, y = math.NaN(), math.NaN()
			}
			grid.Points = append(grid.Points, RoadPoint{X: x, Y: y})
		}
	}
	return grid, nil
}
