// Package transform unprojects depth pixels into world space.
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/depthcloud/spatialmath"
)

// maxIntrinsicsCondition rejects camera matrices that are numerically singular.
const maxIntrinsicsCondition = 1e12

// flipYZ converts the sensor's image space convention (y down, z forward) into the tracking
// convention (y up, z backward).
var flipYZ = mgl64.Scale3D(1, -1, -1)

// portraitRotation compensates for the sensor being mounted in landscape while the device is held
// in portrait.
var portraitRotation = (&spatialmath.R4AA{Theta: math.Pi / 2, RZ: 1}).RotationMatrix()

// Camera is the per frame camera state reported by the tracking system.
type Camera struct {
	// Intrinsics maps camera space rays to pixels of the captured color image.
	Intrinsics mgl64.Mat3
	// ViewMatrix is the world to camera transform for portrait orientation.
	ViewMatrix mgl64.Mat4
	// ImageWidth and ImageHeight are the size of the color image the intrinsics refer to.
	ImageWidth  int
	ImageHeight int
}

// Pose returns the camera to world transform.
func (c Camera) Pose() mgl64.Mat4 {
	return c.ViewMatrix.Inv()
}

// IntrinsicsDense returns the intrinsics as a gonum matrix.
func (c Camera) IntrinsicsDense() *mat.Dense {
	k := c.Intrinsics
	return mat.NewDense(3, 3, []float64{
		k.At(0, 0), k.At(0, 1), k.At(0, 2),
		k.At(1, 0), k.At(1, 1), k.At(1, 2),
		k.At(2, 0), k.At(2, 1), k.At(2, 2),
	})
}

// CheckValid returns an error if the camera cannot be used to unproject points.
func (c Camera) CheckValid() error {
	if c.ImageWidth <= 0 || c.ImageHeight <= 0 {
		return NewNoIntrinsicsError("invalid image size")
	}
	for _, v := range c.Intrinsics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNoIntrinsicsError("intrinsics contain non finite values")
		}
	}
	if cond := mat.Cond(c.IntrinsicsDense(), 2); math.IsInf(cond, 1) || math.IsNaN(cond) || cond > maxIntrinsicsCondition {
		return NewNoIntrinsicsError("intrinsics are not invertible")
	}
	if det := c.ViewMatrix.Det(); det == 0 || math.IsNaN(det) {
		return errors.New("view matrix is not invertible")
	}
	return nil
}

// Unprojector converts normalized depth pixels into world positions for one frame. All matrix
// inverses and products are computed once at construction.
type Unprojector struct {
	invIntrinsics mgl64.Mat3
	cameraToWorld mgl64.Mat4
	imageWidth    float64
	imageHeight   float64
}

// NewUnprojector validates the camera and precomputes the transforms for one frame.
func NewUnprojector(cam Camera, orientation Orientation) (*Unprojector, error) {
	if orientation != Portrait {
		return nil, errors.Wrapf(ErrUnsupportedOrientation, "got %s", orientation)
	}
	if err := cam.CheckValid(); err != nil {
		return nil, err
	}
	return &Unprojector{
		invIntrinsics: cam.Intrinsics.Inv(),
		cameraToWorld: cam.Pose().Mul4(portraitRotation).Mul4(flipYZ),
		imageWidth:    float64(cam.ImageWidth),
		imageHeight:   float64(cam.ImageHeight),
	}, nil
}

// ColorPixel maps a normalized depth map coordinate to the nearest color image pixel.
func (u *Unprojector) ColorPixel(nx, ny float32) (int, int) {
	return int(math.Round(float64(nx) * u.imageWidth)), int(math.Round(float64(ny) * u.imageHeight))
}

// Unproject returns the world position, in meters, of the point seen at normalized depth map
// coordinate (nx, ny) at the given depth. The depth must already be validated.
func (u *Unprojector) Unproject(nx, ny, depth float32) r3.Vector {
	ray := mgl64.Vec3{float64(nx) * u.imageWidth, float64(ny) * u.imageHeight, 1}
	local := u.invIntrinsics.Mul3x1(ray).Mul(float64(depth))
	return spatialmath.TransformPoint(u.cameraToWorld, r3.Vector{X: local[0], Y: local[1], Z: local[2]})
}
