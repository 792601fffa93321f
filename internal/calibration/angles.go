package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularIntrinsicMatrix is returned when K cannot be inverted. It means
// the camera configuration is corrupt, not that the frame was noisy.
var ErrSingularIntrinsicMatrix = errors.New("intrinsic matrix is singular")

// AngleSample is one camera rotation estimate in radians.
type AngleSample struct {
	Pitch float64
	Yaw   float64
}

// EstimateAngles back-projects a vanishing point through K^-1 and returns
// the rotation of the resulting ray.
//
// K must follow the camera frame convention X=right, Y=down, Z=forward. The
// estimator cannot check this; a K built for another convention produces
// wrong angles silently.
func EstimateAngles(vp VanishingPoint, k mat.Matrix) (AngleSample, error) {
	if r, c := k.Dims(); r != 3 || c != 3 {
		return AngleSample{}, fmt.Errorf("%w: want 3x3, got %dx%d", ErrSingularIntrinsicMatrix, r, c)
	}

	var kinv mat.Dense
	if err := kinv.Inverse(k); err != nil {
		return AngleSample{}, fmt.Errorf("%w: %v", ErrSingularIntrinsicMatrix, err)
	}

	var r3 mat.VecDense
	r3.MulVec(&kinv, mat.NewVecDense(3, []float64{vp.U, vp.V, 1}))
	norm := mat.Norm(&r3, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return AngleSample{}, fmt.Errorf("%w: degenerate back-projection", ErrSingularIntrinsicMatrix)
	}
	r3.ScaleVec(1/norm, &r3)

	y := math.Max(-1, math.Min(1, r3.AtVec(1)))
	return AngleSample{
		Pitch: math.Asin(y),
		Yaw:   -math.Atan2(r3.AtVec(0), r3.AtVec(2)),
	}, nil
}
