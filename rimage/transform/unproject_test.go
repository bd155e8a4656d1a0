package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func vectorsAlmostEqual(t *testing.T, actual, expected r3.Vector) {
	t.Helper()
	test.That(t, actual.X, test.ShouldAlmostEqual, expected.X, 1e-6)
	test.That(t, actual.Y, test.ShouldAlmostEqual, expected.Y, 1e-6)
	test.That(t, actual.Z, test.ShouldAlmostEqual, expected.Z, 1e-6)
}

func testCamera() Camera {
	intrinsics := PinholeIntrinsics{Fx: 100, Fy: 100, Ppx: 50, Ppy: 25}
	return Camera{
		Intrinsics:  intrinsics.Matrix(),
		ViewMatrix:  mgl64.Ident4(),
		ImageWidth:  100,
		ImageHeight: 50,
	}
}

func TestUnprojectPrincipalPoint(t *testing.T) {
	u, err := NewUnprojector(testCamera(), Portrait)
	test.That(t, err, test.ShouldBeNil)

	// the principal ray points down -Z in world space after the axis flip
	vectorsAlmostEqual(t, u.Unproject(0.5, 0.5, 1.5), r3.Vector{Z: -1.5})
}

func TestUnprojectPortraitRotation(t *testing.T) {
	u, err := NewUnprojector(testCamera(), Portrait)
	test.That(t, err, test.ShouldBeNil)

	// +x in the sensor image becomes +y in the world for a portrait device
	vectorsAlmostEqual(t, u.Unproject(0.6, 0.5, 2), r3.Vector{Y: 0.2, Z: -2})
	// +y in the sensor image (downwards) becomes +x after the flip and rotation
	vectorsAlmostEqual(t, u.Unproject(0.5, 0.7, 1), r3.Vector{X: 0.1, Z: -1})
}

func TestUnprojectUsesPose(t *testing.T) {
	cam := testCamera()
	// camera sits at x=1, so the view matrix moves the world by -1
	cam.ViewMatrix = mgl64.Translate3D(-1, 0, 0)
	u, err := NewUnprojector(cam, Portrait)
	test.That(t, err, test.ShouldBeNil)
	vectorsAlmostEqual(t, u.Unproject(0.6, 0.5, 2), r3.Vector{X: 1, Y: 0.2, Z: -2})

	// camera turned 90 degrees about world Y
	cam.ViewMatrix = mgl64.HomogRotate3DY(math.Pi / 2).Inv()
	u, err = NewUnprojector(cam, Portrait)
	test.That(t, err, test.ShouldBeNil)
	vectorsAlmostEqual(t, u.Unproject(0.5, 0.5, 1), r3.Vector{X: -1})
}

func TestColorPixel(t *testing.T) {
	u, err := NewUnprojector(testCamera(), Portrait)
	test.That(t, err, test.ShouldBeNil)
	x, y := u.ColorPixel(0.5, 0.5)
	test.That(t, x, test.ShouldEqual, 50)
	test.That(t, y, test.ShouldEqual, 25)
	x, y = u.ColorPixel(0.126, 0.99)
	test.That(t, x, test.ShouldEqual, 13)
	test.That(t, y, test.ShouldEqual, 50)
}

func TestNewUnprojectorRejects(t *testing.T) {
	_, err := NewUnprojector(testCamera(), LandscapeLeft)
	test.That(t, errors.Is(err, ErrUnsupportedOrientation), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "landscape_left")

	cam := testCamera()
	cam.Intrinsics = mgl64.Mat3{}
	_, err = NewUnprojector(cam, Portrait)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	cam = testCamera()
	cam.Intrinsics[0] = math.NaN()
	_, err = NewUnprojector(cam, Portrait)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	cam = testCamera()
	cam.ImageWidth = 0
	_, err = NewUnprojector(cam, Portrait)
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	cam = testCamera()
	cam.ViewMatrix = mgl64.Mat4{}
	_, err = NewUnprojector(cam, Portrait)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "view matrix")
}

func TestOrientationText(t *testing.T) {
	for _, o := range []Orientation{Portrait, PortraitUpsideDown, LandscapeLeft, LandscapeRight} {
		text, err := o.MarshalText()
		test.That(t, err, test.ShouldBeNil)
		var parsed Orientation
		test.That(t, parsed.UnmarshalText(text), test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, o)
	}
	o, err := ParseOrientation("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, o, test.ShouldEqual, Portrait)
	_, err = ParseOrientation("sideways")
	test.That(t, err, test.ShouldNotBeNil)
}
