// Package spatialmath defines the rotations used to place camera points in the world.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// An orientation is expressed by an axis, a line from the origin to a point on the unit sphere
// represented by (rx, ry, rz), and a rotation around that axis, theta.

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an empty R4AA struct.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// ToQuat converts an R4 axis angle to a unit quaternion
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 *R4AA) ToQuat() quat.Number {
	axis := r4.axis()
	sinA := math.Sin(r4.Theta / 2)
	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: axis.X * sinA,
		Jmag: axis.Y * sinA,
		Kmag: axis.Z * sinA,
	}
}

// axis returns the rotation axis on the unit sphere. A zero axis is treated as +Z.
func (r4 *R4AA) axis() r3.Vector {
	v := r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
	if v.Norm() == 0 {
		return r3.Vector{Z: 1}
	}
	return v.Normalize()
}

// RotationMatrix returns the homogeneous 4x4 rotation for the axis angle.
func (r4 *R4AA) RotationMatrix() mgl64.Mat4 {
	return QuatToMat4(r4.ToQuat())
}

// QuatToMat4 converts a unit quaternion into a homogeneous rotation matrix.
func QuatToMat4(q quat.Number) mgl64.Mat4 {
	return mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}.Normalize().Mat4()
}

// TransformPoint applies a homogeneous transform to p and divides by the resulting w.
func TransformPoint(m mgl64.Mat4, p r3.Vector) r3.Vector {
	h := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return r3.Vector{X: h[0] / h[3], Y: h[1] / h[3], Z: h[2] / h[3]}
}
