package reconstruction

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

// RecordedFrame is the on disk form of FrameInputs. Matrices are row-major. Depth samples are
// little endian float32 and every plane is tightly packed; []byte fields are base64 in JSON.
type RecordedFrame struct {
	Timestamp   time.Time             `json:"timestamp"`
	Orientation transform.Orientation `json:"orientation"`
	Camera      RecordedCamera        `json:"camera"`
	Depth       RecordedPlane         `json:"depth"`
	Confidence  RecordedPlane         `json:"confidence"`
	Image       *RecordedImage        `json:"image,omitempty"`
}

// RecordedCamera is the camera state of a recorded frame.
type RecordedCamera struct {
	Intrinsics  [9]float64  `json:"intrinsics"`
	ViewMatrix  [16]float64 `json:"view_matrix"`
	ImageWidth  int         `json:"image_width"`
	ImageHeight int         `json:"image_height"`
}

// RecordedPlane is a single plane of samples.
type RecordedPlane struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
}

// RecordedImage is a biplanar color image.
type RecordedImage struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Luma   []byte `json:"luma"`
	CbCr   []byte `json:"cbcr"`
}

// NewRecordedCamera converts a camera to its recorded form.
func NewRecordedCamera(cam transform.Camera) RecordedCamera {
	return RecordedCamera{
		// mgl64 matrices are column-major, so the transpose's backing array is row-major
		Intrinsics:  cam.Intrinsics.Transpose(),
		ViewMatrix:  cam.ViewMatrix.Transpose(),
		ImageWidth:  cam.ImageWidth,
		ImageHeight: cam.ImageHeight,
	}
}

// Camera converts the recorded camera back.
func (rc RecordedCamera) Camera() transform.Camera {
	return transform.Camera{
		Intrinsics:  mgl64.Mat3(rc.Intrinsics).Transpose(),
		ViewMatrix:  mgl64.Mat4(rc.ViewMatrix).Transpose(),
		ImageWidth:  rc.ImageWidth,
		ImageHeight: rc.ImageHeight,
	}
}

// EncodeDepth packs row-major depth values for a RecordedPlane.
func EncodeDepth(depth []float32) []byte {
	out := make([]byte, 4*len(depth))
	for i, d := range depth {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(d))
	}
	return out
}

func decodeDepth(p RecordedPlane) ([]float32, error) {
	n := p.Width * p.Height
	if p.Width <= 0 || p.Height <= 0 || len(p.Data) != 4*n {
		return nil, errors.Errorf("depth plane is %dx%d but has %d bytes", p.Width, p.Height, len(p.Data))
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.Data[4*i:]))
	}
	return out, nil
}

// Inputs builds in memory pixel buffers for the frame.
func (rf *RecordedFrame) Inputs() (*FrameInputs, error) {
	depth, err := decodeDepth(rf.Depth)
	if err != nil {
		return nil, err
	}
	c := rf.Confidence
	if c.Width != rf.Depth.Width || c.Height != rf.Depth.Height || len(c.Data) != c.Width*c.Height {
		return nil, errors.Errorf("confidence plane is %dx%d with %d bytes, depth plane is %dx%d",
			c.Width, c.Height, len(c.Data), rf.Depth.Width, rf.Depth.Height)
	}
	conf := make([]rimage.Confidence, len(c.Data))
	for i, b := range c.Data {
		conf[i] = rimage.Confidence(b)
	}

	in := &FrameInputs{
		Depth:       rimage.NewDepthPixelBuffer(rf.Depth.Width, rf.Depth.Height, depth),
		Confidence:  rimage.NewConfidencePixelBuffer(c.Width, c.Height, conf),
		Camera:      rf.Camera.Camera(),
		Orientation: rf.Orientation,
		Timestamp:   rf.Timestamp,
	}
	if img := rf.Image; img != nil {
		in.Image = rimage.NewYCbCrPixelBuffer(img.Width, img.Height, img.Luma, img.CbCr)
	}
	return in, nil
}

// ReadFrame decodes a recorded frame from r.
func ReadFrame(r io.Reader) (*RecordedFrame, error) {
	var rf RecordedFrame
	if err := json.NewDecoder(r).Decode(&rf); err != nil {
		return nil, errors.Wrap(err, "cannot decode recorded frame")
	}
	return &rf, nil
}

// ReadFrameFile reads a recorded frame from a JSON file.
func ReadFrameFile(fn string) (_ *RecordedFrame, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	rf, err := ReadFrame(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", fn)
	}
	return rf, nil
}

// WriteFrameFile writes a recorded frame as JSON.
func WriteFrameFile(fn string, rf *RecordedFrame) error {
	data, err := json.Marshal(rf)
	if err != nil {
		return err
	}
	return os.WriteFile(fn, data, 0o600)
}
