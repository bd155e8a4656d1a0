package rimage

import (
	"errors"
	"math"
	"testing"

	"go.viam.com/test"
)

// failingLockBuffer reports a lock failure or a broken plane so that cleanup paths can be checked.
type failingLockBuffer struct {
	*MemoryPixelBuffer
	lockErr  error
	unlocked int
}

func (buf *failingLockBuffer) LockReadOnly() error {
	if buf.lockErr != nil {
		return buf.lockErr
	}
	return buf.MemoryPixelBuffer.LockReadOnly()
}

func (buf *failingLockBuffer) UnlockReadOnly() error {
	buf.unlocked++
	return buf.MemoryPixelBuffer.UnlockReadOnly()
}

func TestPlaneReaderDepth(t *testing.T) {
	depth := []float32{
		0.5, 1, float32(math.NaN()),
		-1, 2, 3,
	}
	buf := NewDepthPixelBuffer(3, 2, depth)

	reader, err := OpenPlane[float32](buf, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.Locked(), test.ShouldBeTrue)
	test.That(t, reader.Width(), test.ShouldEqual, 3)
	test.That(t, reader.Height(), test.ShouldEqual, 2)

	v, ok := reader.At(0, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, float32(0.5))

	v, ok = reader.At(2, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.IsNaN(float64(v)), test.ShouldBeTrue)

	v, ok = reader.At(1, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, float32(2))

	for _, pt := range [][2]int{{-1, 0}, {0, -1}, {3, 0}, {0, 2}} {
		_, ok = reader.At(pt[0], pt[1])
		test.That(t, ok, test.ShouldBeFalse)
	}

	test.That(t, reader.Close(), test.ShouldBeNil)
	test.That(t, buf.Locked(), test.ShouldBeFalse)
	test.That(t, reader.Close(), test.ShouldBeNil)
	test.That(t, buf.Locked(), test.ShouldBeFalse)

	_, ok = reader.At(0, 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestPlaneReaderStride(t *testing.T) {
	// 2x2 bytes with 2 bytes of padding per row
	data := []byte{
		1, 2, 0xEE, 0xEE,
		3, 4, 0xEE, 0xEE,
	}
	buf := NewMemoryPixelBuffer(2, 2, MemoryPlane{
		Info: PlaneInfo{Width: 2, Height: 2, BytesPerRow: 4},
		Data: data,
	})
	reader, err := OpenPlane[Confidence](buf, 0)
	test.That(t, err, test.ShouldBeNil)
	defer reader.Close()

	c, ok := reader.At(0, 1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c, test.ShouldEqual, Confidence(3))
	c, _ = reader.At(1, 1)
	test.That(t, c, test.ShouldEqual, Confidence(4))
}

func TestOpenPlaneReleasesLockOnFailure(t *testing.T) {
	t.Run("missing plane", func(t *testing.T) {
		buf := &failingLockBuffer{MemoryPixelBuffer: NewDepthPixelBuffer(1, 1, []float32{1})}
		_, err := OpenPlane[float32](buf, 1)
		test.That(t, errors.Is(err, ErrMissingPlane), test.ShouldBeTrue)
		test.That(t, buf.LockCount(), test.ShouldEqual, 0)
	})

	t.Run("plane too small", func(t *testing.T) {
		buf := &failingLockBuffer{MemoryPixelBuffer: NewMemoryPixelBuffer(4, 4, MemoryPlane{
			Info: PlaneInfo{Width: 4, Height: 4, BytesPerRow: 16},
			Data: make([]byte, 10),
		})}
		_, err := OpenPlane[float32](buf, 0)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "plane needs")
		test.That(t, buf.LockCount(), test.ShouldEqual, 1)
		test.That(t, buf.unlocked, test.ShouldEqual, 1)
		test.That(t, buf.Locked(), test.ShouldBeFalse)
	})

	t.Run("stride too small", func(t *testing.T) {
		buf := &failingLockBuffer{MemoryPixelBuffer: NewMemoryPixelBuffer(4, 1, MemoryPlane{
			Info: PlaneInfo{Width: 4, Height: 1, BytesPerRow: 8},
			Data: make([]byte, 16),
		})}
		_, err := OpenPlane[float32](buf, 0)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "row stride")
		test.That(t, buf.unlocked, test.ShouldEqual, 1)
	})

	t.Run("lock failure", func(t *testing.T) {
		buf := &failingLockBuffer{
			MemoryPixelBuffer: NewDepthPixelBuffer(1, 1, []float32{1}),
			lockErr:           errors.New("busy"),
		}
		_, err := OpenPlane[float32](buf, 0)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "busy")
		test.That(t, buf.unlocked, test.ShouldEqual, 0)
	})

	t.Run("nil buffer", func(t *testing.T) {
		_, err := OpenPlane[float32](nil, 0)
		test.That(t, errors.Is(err, ErrMissingPlane), test.ShouldBeTrue)
	})
}

func TestMemoryPixelBufferRequiresLock(t *testing.T) {
	buf := NewDepthPixelBuffer(1, 1, []float32{1})
	_, _, err := buf.Plane(0)
	test.That(t, errors.Is(err, ErrNotLocked), test.ShouldBeTrue)
	test.That(t, buf.UnlockReadOnly(), test.ShouldBeError, ErrNotLocked)
}

func TestConfidence(t *testing.T) {
	test.That(t, Confidence(2).Classify(), test.ShouldEqual, ConfidenceHigh)
	test.That(t, Confidence(7).Classify(), test.ShouldEqual, ConfidenceNone)
	test.That(t, Confidence(7).String(), test.ShouldEqual, "none")
	test.That(t, ConfidenceMedium.String(), test.ShouldEqual, "medium")
}
