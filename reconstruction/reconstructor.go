// Package reconstruction turns one depth frame into a list of colored world space points.
package reconstruction

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/config"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
	"go.viam.com/depthcloud/utils"
)

// MinDepth is the exclusive lower bound of accepted depth samples in meters.
const MinDepth = 0

// FrameInputs is everything captured for a single frame. The buffers are borrowed for the
// duration of one Reconstruct call and never retained.
type FrameInputs struct {
	// Depth has one float32 plane of distances in meters.
	Depth rimage.PixelBuffer
	// Confidence has one uint8 plane, the same size as Depth.
	Confidence rimage.PixelBuffer
	// Image is the biplanar color image, sized as the camera's ImageWidth x ImageHeight. A frame
	// without one is skipped; its colors are only used when coloring with the camera.
	Image       rimage.PixelBuffer
	Camera      transform.Camera
	Orientation transform.Orientation
	Timestamp   time.Time
}

// Reconstructor builds point lists from frames. It holds no per frame state and is safe to use
// from several goroutines.
type Reconstructor struct {
	cfg    config.Reconstruction
	logger logging.Logger
}

// NewReconstructor returns a Reconstructor using cfg, with defaults applied to unset fields.
func NewReconstructor(cfg config.Reconstruction, logger logging.Logger) (*Reconstructor, error) {
	if err := cfg.Validate("reconstruction"); err != nil {
		return nil, err
	}
	return &Reconstructor{cfg: cfg, logger: logger}, nil
}

// Config returns the validated configuration.
func (r *Reconstructor) Config() config.Reconstruction {
	return r.cfg
}

// Reconstruct returns one vertex for every accepted depth pixel, in row-major order. Frames with
// missing or unusable data produce no points; the reason is logged at debug level. All buffers
// are unlocked before Reconstruct returns.
func (r *Reconstructor) Reconstruct(ctx context.Context, frame *FrameInputs) []pointcloud.Vertex {
	vertices, err := r.reconstruct(ctx, frame)
	if err != nil {
		r.logger.Debugw("frame skipped", "error", err)
		return nil
	}
	return vertices
}

// frameView is the locked, validated state of a frame for the duration of a reconstruction.
type frameView struct {
	depth      *rimage.PlaneReader[float32]
	confidence *rimage.PlaneReader[rimage.Confidence]
	image      *rimage.YCbCrBuffer
	unproject  *transform.Unprojector
}

func (fv *frameView) Close() error {
	var err error
	if fv.depth != nil {
		err = multierr.Combine(err, fv.depth.Close())
	}
	if fv.confidence != nil {
		err = multierr.Combine(err, fv.confidence.Close())
	}
	if fv.image != nil {
		err = multierr.Combine(err, fv.image.Close())
	}
	return err
}

func (r *Reconstructor) open(frame *FrameInputs) (_ *frameView, err error) {
	if frame == nil {
		return nil, errors.New("no frame")
	}
	unproject, err := transform.NewUnprojector(frame.Camera, frame.Orientation)
	if err != nil {
		return nil, err
	}

	fv := &frameView{unproject: unproject}
	guard := utils.NewGuard(func() {
		err = multierr.Combine(err, fv.Close())
	})
	defer guard.OnFail()

	if fv.depth, err = rimage.OpenPlane[float32](frame.Depth, 0); err != nil {
		return nil, errors.Wrap(err, "depth")
	}
	if fv.confidence, err = rimage.OpenPlane[rimage.Confidence](frame.Confidence, 0); err != nil {
		return nil, errors.Wrap(err, "confidence")
	}
	if fv.depth.Width() != fv.confidence.Width() || fv.depth.Height() != fv.confidence.Height() {
		return nil, errors.Errorf("confidence map is %dx%d but depth map is %dx%d",
			fv.confidence.Width(), fv.confidence.Height(), fv.depth.Width(), fv.depth.Height())
	}
	if fv.image, err = rimage.OpenYCbCrBuffer(frame.Image); err != nil {
		return nil, errors.Wrap(err, "image")
	}
	if fv.image.Width() != frame.Camera.ImageWidth || fv.image.Height() != frame.Camera.ImageHeight {
		return nil, errors.Errorf("image is %dx%d but the camera intrinsics are for %dx%d",
			fv.image.Width(), fv.image.Height(), frame.Camera.ImageWidth, frame.Camera.ImageHeight)
	}
	guard.Success()
	return fv, nil
}

func (r *Reconstructor) reconstruct(ctx context.Context, frame *FrameInputs) (_ []pointcloud.Vertex, err error) {
	fv, err := r.open(frame)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, fv.Close())
	}()

	width, height := fv.depth.Width(), fv.depth.Height()
	// SplitRows never returns more bands than the requested parallelism
	bands := make([][]pointcloud.Vertex, r.cfg.Parallelism)
	if err := utils.ParallelForEachRowBand(ctx, height, r.cfg.Parallelism, func(ctx context.Context, band utils.RowBand) error {
		out := make([]pointcloud.Vertex, 0, (band.To-band.From)*width/2)
		for row := band.From; row < band.To; row++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			for col := 0; col < width; col++ {
				if v, ok := r.vertexAt(fv, col, row, width, height); ok {
					out = append(out, v)
				}
			}
		}
		bands[band.Index] = out
		return nil
	}); err != nil {
		return nil, err
	}

	return lo.Flatten(bands), nil
}

// accept reports whether a depth sample is inside the usable sensing range.
func (r *Reconstructor) accept(conf rimage.Confidence, depth float32) bool {
	if conf.Classify() != rimage.ConfidenceHigh {
		return false
	}
	if math.IsNaN(float64(depth)) {
		return false
	}
	return depth > MinDepth && depth <= r.cfg.MaxDepthMeters
}

func (r *Reconstructor) vertexAt(fv *frameView, col, row, width, height int) (pointcloud.Vertex, bool) {
	conf, ok := fv.confidence.At(col, row)
	if !ok {
		return pointcloud.Vertex{}, false
	}
	depth, ok := fv.depth.At(col, row)
	if !ok || !r.accept(conf, depth) {
		return pointcloud.Vertex{}, false
	}

	nx := float32(col) / float32(width)
	ny := float32(row) / float32(height)
	v := pointcloud.Vertex{Position: fv.unproject.Unproject(nx, ny, depth)}
	if !finite(v.Position) {
		return pointcloud.Vertex{}, false
	}
	if r.cfg.ColorMode == config.ColorModeCamera {
		v.Color = fv.image.ColorAt(fv.unproject.ColorPixel(nx, ny))
	} else {
		v.Color = rimage.DistanceColor(rimage.NormalizedDistance(depth, r.cfg.MaxDepthMeters))
	}
	return v, true
}

// finite is false for points sent to infinity by a degenerate pose.
func finite(p r3.Vector) bool {
	for _, c := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
