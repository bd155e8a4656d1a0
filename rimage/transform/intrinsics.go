package transform

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// ErrNoIntrinsics is returned when a camera has no usable intrinsics.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with the reason the intrinsics were rejected.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeIntrinsics are the focal lengths and principal point, in color image pixels, of a
// camera without skew.
type PinholeIntrinsics struct {
	Fx  float64 `json:"fx"`
	Fy  float64 `json:"fy"`
	Ppx float64 `json:"ppx"`
	Ppy float64 `json:"ppy"`
}

// Matrix returns the camera matrix
//
//	[[fx 0 ppx],
//	 [0 fy ppy],
//	 [0  0  1]]
func (p PinholeIntrinsics) Matrix() mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{p.Fx, 0, p.Ppx},
		mgl64.Vec3{0, p.Fy, p.Ppy},
		mgl64.Vec3{0, 0, 1},
	)
}
