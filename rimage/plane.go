package rimage

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/depthcloud/utils"
)

// Element is the set of sample types a plane can hold.
type Element interface {
	~uint8 | ~uint16 | ~float32
}

// elementCodec returns the byte size of T and a decoder for one element. uint16 samples are
// little endian so that the first byte in memory is the low byte; float32 samples use the host
// byte order like the sensor buffers they come from.
func elementCodec[T Element]() (int, func([]byte) T) {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Uint8:
		return 1, func(b []byte) T { return T(b[0]) }
	case reflect.Uint16:
		return 2, func(b []byte) T { return T(binary.LittleEndian.Uint16(b)) }
	default:
		return 4, func(b []byte) T { return T(math.Float32frombits(binary.NativeEndian.Uint32(b))) }
	}
}

// PlaneReader is a typed, bounds checked view of one locked plane. It never exposes the
// underlying memory. Close must be called once reading is done; it releases the lock exactly
// once no matter how many times it is called.
type PlaneReader[T Element] struct {
	info     PlaneInfo
	data     []byte
	elemSize int
	decode   func([]byte) T

	release func() error
	closed  atomic.Bool
}

func newPlaneReader[T Element](info PlaneInfo, data []byte, release func() error) (*PlaneReader[T], error) {
	elemSize, decode := elementCodec[T]()
	if err := info.Validate(elemSize, len(data)); err != nil {
		return nil, err
	}
	return &PlaneReader[T]{info: info, data: data, elemSize: elemSize, decode: decode, release: release}, nil
}

// OpenPlane locks buf and returns a reader for the given plane. On error the buffer is left
// unlocked.
func OpenPlane[T Element](buf PixelBuffer, plane int) (*PlaneReader[T], error) {
	if buf == nil {
		return nil, ErrMissingPlane
	}
	if plane >= buf.PlaneCount() {
		return nil, errors.Wrapf(ErrMissingPlane, "plane %d of %d", plane, buf.PlaneCount())
	}
	if err := buf.LockReadOnly(); err != nil {
		return nil, errors.Wrap(err, "cannot lock pixel buffer")
	}
	guard := utils.NewGuard(func() {
		//nolint:errcheck
		buf.UnlockReadOnly()
	})
	defer guard.OnFail()

	info, data, err := buf.Plane(plane)
	if err != nil {
		return nil, err
	}
	reader, err := newPlaneReader[T](info, data, buf.UnlockReadOnly)
	if err != nil {
		return nil, errors.Wrapf(err, "plane %d", plane)
	}
	guard.Success()
	return reader, nil
}

// Info returns the plane geometry.
func (pr *PlaneReader[T]) Info() PlaneInfo {
	return pr.info
}

// Width returns the plane width in elements.
func (pr *PlaneReader[T]) Width() int {
	return pr.info.Width
}

// Height returns the plane height in rows.
func (pr *PlaneReader[T]) Height() int {
	return pr.info.Height
}

// Contains reports whether (x, y) is inside the plane.
func (pr *PlaneReader[T]) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < pr.info.Width && y < pr.info.Height
}

// At returns the element at column x and row y. The second return is false when (x, y) is out of
// bounds or the reader has been closed.
func (pr *PlaneReader[T]) At(x, y int) (T, bool) {
	if !pr.Contains(x, y) || pr.closed.Load() {
		var zero T
		return zero, false
	}
	off := y*pr.info.BytesPerRow + x*pr.elemSize
	return pr.decode(pr.data[off : off+pr.elemSize]), true
}

// Close releases the plane lock.
func (pr *PlaneReader[T]) Close() error {
	if !pr.closed.CompareAndSwap(false, true) {
		return nil
	}
	if pr.release == nil {
		return nil
	}
	return pr.release()
}
