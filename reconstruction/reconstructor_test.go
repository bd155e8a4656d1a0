package reconstruction

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.viam.com/test"

	"go.viam.com/depthcloud/config"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

const (
	imageWidth  = 100
	imageHeight = 50
)

func testCamera() transform.Camera {
	intrinsics := transform.PinholeIntrinsics{Fx: 100, Fy: 100, Ppx: 50, Ppy: 25}
	return transform.Camera{
		Intrinsics:  intrinsics.Matrix(),
		ViewMatrix:  mgl64.Ident4(),
		ImageWidth:  imageWidth,
		ImageHeight: imageHeight,
	}
}

func uniformImage(y, cb, cr byte) *rimage.MemoryPixelBuffer {
	luma := make([]byte, imageWidth*imageHeight)
	for i := range luma {
		luma[i] = y
	}
	cbcr := make([]byte, 2*((imageWidth+1)/2)*((imageHeight+1)/2))
	for i := 0; i < len(cbcr); i += 2 {
		cbcr[i], cbcr[i+1] = cb, cr
	}
	return rimage.NewYCbCrPixelBuffer(imageWidth, imageHeight, luma, cbcr)
}

func newFrame(width, height int, depth []float32, conf []rimage.Confidence) *FrameInputs {
	return &FrameInputs{
		Depth:      rimage.NewDepthPixelBuffer(width, height, depth),
		Confidence: rimage.NewConfidencePixelBuffer(width, height, conf),
		Image:      uniformImage(235, 128, 128),
		Camera:     testCamera(),
	}
}

func filled[T any](n int, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newTestReconstructor(t *testing.T, cfg config.Reconstruction) *Reconstructor {
	t.Helper()
	r, err := NewReconstructor(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return r
}

func assertUnlocked(t *testing.T, frame *FrameInputs) {
	t.Helper()
	for _, buf := range []rimage.PixelBuffer{frame.Depth, frame.Confidence, frame.Image} {
		if mem, ok := buf.(*rimage.MemoryPixelBuffer); ok {
			test.That(t, mem.Locked(), test.ShouldBeFalse)
		}
	}
}

func TestNewReconstructorDefaults(t *testing.T) {
	r := newTestReconstructor(t, config.Reconstruction{})
	test.That(t, r.Config().MaxDepthMeters, test.ShouldEqual, rimage.DefaultMaxDepth)
	test.That(t, r.Config().ColorMode, test.ShouldEqual, config.ColorModeDepth)
	test.That(t, r.Config().Parallelism, test.ShouldBeGreaterThan, 0)

	_, err := NewReconstructor(config.Reconstruction{ColorMode: "infrared"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReconstructConfidenceFilter(t *testing.T) {
	conf := []rimage.Confidence{
		rimage.ConfidenceHigh, rimage.ConfidenceLow, rimage.ConfidenceMedium, rimage.Confidence(3),
		rimage.ConfidenceHigh, rimage.ConfidenceHigh, rimage.ConfidenceNone, rimage.ConfidenceHigh,
	}
	frame := newFrame(4, 2, filled[float32](8, 1), conf)
	r := newTestReconstructor(t, config.Reconstruction{})

	vertices := r.Reconstruct(context.Background(), frame)
	test.That(t, vertices, test.ShouldHaveLength, 4)
	assertUnlocked(t, frame)
}

func TestReconstructDepthFilter(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	depth := []float32{0, -1, nan, 2.0, 2.0001, 1e-6, inf, 1.0}
	frame := newFrame(4, 2, depth, filled(8, rimage.ConfidenceHigh))
	r := newTestReconstructor(t, config.Reconstruction{})

	vertices := r.Reconstruct(context.Background(), frame)
	test.That(t, vertices, test.ShouldHaveLength, 3)
	// farthest accepted sample saturates the gradient
	test.That(t, vertices[0].Color, test.ShouldResemble, rimage.DistanceColor(1))

	r = newTestReconstructor(t, config.Reconstruction{MaxDepthMeters: 5})
	vertices = r.Reconstruct(context.Background(), frame)
	test.That(t, vertices, test.ShouldHaveLength, 4)
}

func TestReconstructRowMajorPositions(t *testing.T) {
	frame := newFrame(4, 2, filled[float32](8, 1), filled(8, rimage.ConfidenceHigh))
	r := newTestReconstructor(t, config.Reconstruction{Parallelism: 2})

	vertices := r.Reconstruct(context.Background(), frame)
	test.That(t, vertices, test.ShouldHaveLength, 8)

	// col 2, row 1 is the principal point of the 4x2 depth map
	center := vertices[1*4+2]
	test.That(t, center.Position.X, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, center.Position.Y, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, center.Position.Z, test.ShouldAlmostEqual, -1, 1e-6)
	test.That(t, center.Color, test.ShouldResemble, rimage.DistanceColor(0.5))

	u, err := transform.NewUnprojector(testCamera(), transform.Portrait)
	test.That(t, err, test.ShouldBeNil)
	for i, v := range vertices {
		col, row := i%4, i/4
		want := u.Unproject(float32(col)/4, float32(row)/2, 1)
		test.That(t, v.Position.Distance(want), test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestReconstructParallelismIsInvisible(t *testing.T) {
	const w, h = 5, 7
	depth := make([]float32, w*h)
	conf := make([]rimage.Confidence, w*h)
	for i := range depth {
		depth[i] = 0.1 + float32(i%9)*0.25
		conf[i] = rimage.Confidence(i % 3)
	}
	var results [][]pointcloud.Vertex
	for _, p := range []int{1, 2, 3, 16} {
		r := newTestReconstructor(t, config.Reconstruction{Parallelism: p})
		results = append(results, r.Reconstruct(context.Background(), newFrame(w, h, depth, conf)))
	}
	test.That(t, len(results[0]), test.ShouldBeGreaterThan, 0)
	for _, res := range results[1:] {
		test.That(t, res, test.ShouldResemble, results[0])
	}
}

func TestReconstructCameraColors(t *testing.T) {
	frame := newFrame(2, 2, filled[float32](4, 1), filled(4, rimage.ConfidenceHigh))
	r := newTestReconstructor(t, config.Reconstruction{ColorMode: config.ColorModeCamera})

	vertices := r.Reconstruct(context.Background(), frame)
	test.That(t, vertices, test.ShouldHaveLength, 4)
	for _, v := range vertices {
		test.That(t, v.Color.R, test.ShouldAlmostEqual, 1, 1e-3)
		test.That(t, v.Color.G, test.ShouldAlmostEqual, 1, 1e-3)
		test.That(t, v.Color.B, test.ShouldAlmostEqual, 1, 1e-3)
		test.That(t, v.Color.A, test.ShouldEqual, 1)
	}
	assertUnlocked(t, frame)

	// the image is required whichever coloring is used
	frame = newFrame(2, 2, filled[float32](4, 1), filled(4, rimage.ConfidenceHigh))
	frame.Image = nil
	test.That(t, r.Reconstruct(context.Background(), frame), test.ShouldBeEmpty)
	assertUnlocked(t, frame)

	r = newTestReconstructor(t, config.Reconstruction{})
	test.That(t, r.Reconstruct(context.Background(), frame), test.ShouldBeEmpty)
	assertUnlocked(t, frame)
}

func TestReconstructLocksImageInDepthMode(t *testing.T) {
	frame := newFrame(2, 2, filled[float32](4, 1), filled(4, rimage.ConfidenceHigh))
	r := newTestReconstructor(t, config.Reconstruction{})

	vertices := r.Reconstruct(context.Background(), frame)
	test.That(t, vertices, test.ShouldHaveLength, 4)
	test.That(t, vertices[0].Color, test.ShouldResemble, rimage.DistanceColor(0.5))
	test.That(t, frame.Image.(*rimage.MemoryPixelBuffer).LockCount(), test.ShouldEqual, 1)
	assertUnlocked(t, frame)
}

func TestReconstructDropsPointsAtInfinity(t *testing.T) {
	// w = z + 1 in the pose, so camera space points at depth 1 land on the plane at infinity
	pose := mgl64.Mat4FromRows(
		mgl64.Vec4{1, 0, 0, 0},
		mgl64.Vec4{0, 1, 0, 0},
		mgl64.Vec4{0, 0, 1, 0},
		mgl64.Vec4{0, 0, 1, 1},
	)
	frame := newFrame(2, 2, []float32{1, 2, 1, 2}, filled(4, rimage.ConfidenceHigh))
	frame.Camera.ViewMatrix = pose.Inv()
	r := newTestReconstructor(t, config.Reconstruction{})

	vertices := r.Reconstruct(context.Background(), frame)
	test.That(t, vertices, test.ShouldHaveLength, 2)
	for _, v := range vertices {
		test.That(t, math.IsInf(v.Position.X, 0) || math.IsNaN(v.Position.X), test.ShouldBeFalse)
		test.That(t, math.IsInf(v.Position.Z, 0) || math.IsNaN(v.Position.Z), test.ShouldBeFalse)
	}
	assertUnlocked(t, frame)
}

func TestReconstructRejectsBadFrames(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	r, err := NewReconstructor(config.Reconstruction{}, logger)
	test.That(t, err, test.ShouldBeNil)
	good := func() *FrameInputs {
		return newFrame(2, 2, filled[float32](4, 1), filled(4, rimage.ConfidenceHigh))
	}

	for _, tc := range []struct {
		name   string
		mutate func(*FrameInputs)
	}{
		{"nil depth", func(f *FrameInputs) { f.Depth = nil }},
		{"nil confidence", func(f *FrameInputs) { f.Confidence = nil }},
		{"empty depth buffer", func(f *FrameInputs) { f.Depth = rimage.NewMemoryPixelBuffer(2, 2) }},
		{"confidence size mismatch", func(f *FrameInputs) {
			f.Confidence = rimage.NewConfidencePixelBuffer(1, 2, filled(2, rimage.ConfidenceHigh))
		}},
		{"short depth plane", func(f *FrameInputs) {
			f.Depth = rimage.NewDepthPixelBuffer(2, 2, filled[float32](3, 1))
		}},
		{"landscape", func(f *FrameInputs) { f.Orientation = transform.LandscapeLeft }},
		{"singular intrinsics", func(f *FrameInputs) { f.Camera.Intrinsics = mgl64.Mat3{} }},
		{"nil image", func(f *FrameInputs) { f.Image = nil }},
		{"empty image buffer", func(f *FrameInputs) { f.Image = rimage.NewMemoryPixelBuffer(imageWidth, imageHeight) }},
		{"image size mismatch", func(f *FrameInputs) { f.Camera.ImageWidth = imageWidth / 2 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			frame := good()
			tc.mutate(frame)
			test.That(t, r.Reconstruct(context.Background(), frame), test.ShouldBeEmpty)
			assertUnlocked(t, frame)
		})
	}
	test.That(t, logs.FilterMessage("frame skipped").Len(), test.ShouldEqual, 10)
	test.That(t, r.Reconstruct(context.Background(), nil), test.ShouldBeEmpty)
}

func TestReconstructCancelled(t *testing.T) {
	frame := newFrame(4, 2, filled[float32](8, 1), filled(8, rimage.ConfidenceHigh))
	r := newTestReconstructor(t, config.Reconstruction{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, r.Reconstruct(ctx, frame), test.ShouldBeEmpty)
	assertUnlocked(t, frame)
}
