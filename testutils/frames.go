package testutils

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"go.viam.com/depthcloud/reconstruction"
	"go.viam.com/depthcloud/rimage"
	"go.viam.com/depthcloud/rimage/transform"
)

// Color image size of the frames built here.
const (
	ImageWidth  = 100
	ImageHeight = 50
)

// Camera returns an identity pose camera looking down -Z with the principal point in the
// middle of the image.
func Camera() transform.Camera {
	intrinsics := transform.PinholeIntrinsics{Fx: 100, Fy: 100, Ppx: 50, Ppy: 25}
	return transform.Camera{
		Intrinsics:  intrinsics.Matrix(),
		ViewMatrix:  mgl64.Ident4(),
		ImageWidth:  ImageWidth,
		ImageHeight: ImageHeight,
	}
}

// RecordedGrayImage is a biplanar image of a single neutral luma value, in its on disk form.
func RecordedGrayImage(y byte) *reconstruction.RecordedImage {
	luma := make([]byte, ImageWidth*ImageHeight)
	for i := range luma {
		luma[i] = y
	}
	cbcr := make([]byte, 2*((ImageWidth+1)/2)*((ImageHeight+1)/2))
	for i := range cbcr {
		cbcr[i] = 128
	}
	return &reconstruction.RecordedImage{Width: ImageWidth, Height: ImageHeight, Luma: luma, CbCr: cbcr}
}

// GrayImage returns a biplanar image of a single neutral luma value.
func GrayImage(y byte) *rimage.MemoryPixelBuffer {
	img := RecordedGrayImage(y)
	return rimage.NewYCbCrPixelBuffer(img.Width, img.Height, img.Luma, img.CbCr)
}

// FlatFrame returns a width x height frame where every pixel is high confidence at depth meters.
func FlatFrame(width, height int, depth float32) *reconstruction.FrameInputs {
	d := make([]float32, width*height)
	c := make([]rimage.Confidence, width*height)
	for i := range d {
		d[i] = depth
		c[i] = rimage.ConfidenceHigh
	}
	return &reconstruction.FrameInputs{
		Depth:      rimage.NewDepthPixelBuffer(width, height, d),
		Confidence: rimage.NewConfidencePixelBuffer(width, height, c),
		Image:      GrayImage(235),
		Camera:     Camera(),
		Timestamp:  time.Now(),
	}
}

// RecordedFlatFrame is FlatFrame in its on disk form.
func RecordedFlatFrame(width, height int, depth float32) *reconstruction.RecordedFrame {
	d := make([]float32, width*height)
	c := make([]byte, width*height)
	for i := range d {
		d[i] = depth
		c[i] = byte(rimage.ConfidenceHigh)
	}
	return &reconstruction.RecordedFrame{
		Timestamp:  time.Now().UTC(),
		Camera:     reconstruction.NewRecordedCamera(Camera()),
		Depth:      reconstruction.RecordedPlane{Width: width, Height: height, Data: reconstruction.EncodeDepth(d)},
		Confidence: reconstruction.RecordedPlane{Width: width, Height: height, Data: c},
		Image:      RecordedGrayImage(235),
	}
}
