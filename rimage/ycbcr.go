package rimage

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/depthcloud/utils"
)

// CbCr is one interleaved chroma sample: Cb in the first byte, Cr in the second.
type CbCr uint16

// Cb returns the blue difference component.
func (c CbCr) Cb() uint8 {
	return uint8(c)
}

// Cr returns the red difference component.
func (c CbCr) Cr() uint8 {
	return uint8(c >> 8)
}

// YCbCrToColor converts one limited range (video range) BT.601 sample to a normalized color.
func YCbCrToColor(y, cb, cr uint8) Color {
	yf := float32(y) - 16
	cbf := float32(cb) - 128
	crf := float32(cr) - 128

	r := 1.164*yf + 1.596*crf
	g := 1.164*yf - 0.392*cbf - 0.813*crf
	b := 1.164*yf + 2.017*cbf

	return NewColor(
		utils.Clamp(r/255, 0, 1),
		utils.Clamp(g/255, 0, 1),
		utils.Clamp(b/255, 0, 1),
	)
}

// YCbCrBuffer samples colors from a locked biplanar image: a full resolution luma plane and a
// half resolution plane of interleaved Cb,Cr pairs.
type YCbCrBuffer struct {
	buf    PixelBuffer
	luma   *PlaneReader[uint8]
	chroma *PlaneReader[CbCr]
	closed atomic.Bool
}

// OpenYCbCrBuffer locks buf once for both planes. Close releases it.
func OpenYCbCrBuffer(buf PixelBuffer) (*YCbCrBuffer, error) {
	if buf == nil || buf.PlaneCount() < 2 {
		return nil, errors.Wrap(ErrMissingPlane, "biplanar image needs a luma and a chroma plane")
	}
	if err := buf.LockReadOnly(); err != nil {
		return nil, errors.Wrap(err, "cannot lock image buffer")
	}
	guard := utils.NewGuard(func() {
		//nolint:errcheck
		buf.UnlockReadOnly()
	})
	defer guard.OnFail()

	lumaInfo, lumaData, err := buf.Plane(0)
	if err != nil {
		return nil, err
	}
	chromaInfo, chromaData, err := buf.Plane(1)
	if err != nil {
		return nil, err
	}
	// the buffer lock is owned by YCbCrBuffer.Close, not the planes
	luma, err := newPlaneReader[uint8](lumaInfo, lumaData, nil)
	if err != nil {
		return nil, errors.Wrap(err, "luma plane")
	}
	chroma, err := newPlaneReader[CbCr](chromaInfo, chromaData, nil)
	if err != nil {
		return nil, errors.Wrap(err, "chroma plane")
	}
	guard.Success()
	return &YCbCrBuffer{buf: buf, luma: luma, chroma: chroma}, nil
}

// Width returns the luma plane width.
func (yb *YCbCrBuffer) Width() int {
	return yb.luma.Width()
}

// Height returns the luma plane height.
func (yb *YCbCrBuffer) Height() int {
	return yb.luma.Height()
}

// ColorAt returns the color at full resolution pixel (x, y). Coordinates outside the image are
// clamped to the nearest edge pixel.
func (yb *YCbCrBuffer) ColorAt(x, y int) Color {
	px := utils.Clamp(x, 0, yb.luma.Width()-1)
	py := utils.Clamp(y, 0, yb.luma.Height()-1)

	luma, _ := yb.luma.At(px, py)
	// odd sized images can have a chroma plane that is shorter than half the luma plane rounded up
	cx := utils.Clamp(px/2, 0, yb.chroma.Width()-1)
	cy := utils.Clamp(py/2, 0, yb.chroma.Height()-1)
	chroma, _ := yb.chroma.At(cx, cy)

	return YCbCrToColor(luma, chroma.Cb(), chroma.Cr())
}

// Close unlocks the image buffer. It is safe to call more than once.
func (yb *YCbCrBuffer) Close() error {
	if !yb.closed.CompareAndSwap(false, true) {
		return nil
	}
	//nolint:errcheck
	yb.luma.Close()
	//nolint:errcheck
	yb.chroma.Close()
	return yb.buf.UnlockReadOnly()
}
