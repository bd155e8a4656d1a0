package rimage

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

var (
	// ErrMissingPlane is returned when a pixel buffer does not have the requested plane.
	ErrMissingPlane = errors.New("pixel buffer plane is missing")
	// ErrNotLocked is returned when plane memory is requested from an unlocked pixel buffer.
	ErrNotLocked = errors.New("pixel buffer is not locked")
)

// PlaneInfo describes the geometry of one plane of a PixelBuffer. Width and Height count
// elements, not bytes. BytesPerRow is the row stride and may include padding.
type PlaneInfo struct {
	Width       int
	Height      int
	BytesPerRow int
}

// Validate checks that a plane holding elements of elemSize bytes fits in dataLen bytes.
func (info PlaneInfo) Validate(elemSize, dataLen int) error {
	if info.Width <= 0 || info.Height <= 0 {
		return errors.Errorf("invalid plane size (%d, %d)", info.Width, info.Height)
	}
	if info.BytesPerRow < info.Width*elemSize {
		return errors.Errorf("row stride %d is smaller than %d elements of %d bytes",
			info.BytesPerRow, info.Width, elemSize)
	}
	if need := (info.Height-1)*info.BytesPerRow + info.Width*elemSize; dataLen < need {
		return errors.Errorf("plane needs %d bytes but only %d are available", need, dataLen)
	}
	return nil
}

// PixelBuffer is a possibly multi-planar image whose memory must be locked before it is read.
// Frame sources implement it over their native buffers.
type PixelBuffer interface {
	// Width and Height are the dimensions of the full resolution image.
	Width() int
	Height() int
	PlaneCount() int

	// LockReadOnly pins the buffer memory. Every successful call must be paired with exactly one
	// UnlockReadOnly.
	LockReadOnly() error
	UnlockReadOnly() error

	// Plane returns the geometry and memory of plane i. The memory is only valid while the
	// buffer is locked.
	Plane(i int) (PlaneInfo, []byte, error)
}

// MemoryPlane is one plane of a MemoryPixelBuffer.
type MemoryPlane struct {
	Info PlaneInfo
	Data []byte
}

// MemoryPixelBuffer is a PixelBuffer backed by Go memory. It is used for recorded frames and
// by tests.
type MemoryPixelBuffer struct {
	width, height int
	planes        []MemoryPlane

	mu      sync.RWMutex
	readers atomic.Int32
	locks   atomic.Int64
}

// NewMemoryPixelBuffer returns a pixel buffer over the given planes. The plane memory is not
// copied.
func NewMemoryPixelBuffer(width, height int, planes ...MemoryPlane) *MemoryPixelBuffer {
	return &MemoryPixelBuffer{width: width, height: height, planes: planes}
}

// NewDepthPixelBuffer packs row-major float32 depth values (meters) into a single plane buffer.
func NewDepthPixelBuffer(width, height int, depth []float32) *MemoryPixelBuffer {
	data := make([]byte, 4*len(depth))
	for i, d := range depth {
		binary.NativeEndian.PutUint32(data[4*i:], math.Float32bits(d))
	}
	info := PlaneInfo{Width: width, Height: height, BytesPerRow: 4 * width}
	return NewMemoryPixelBuffer(width, height, MemoryPlane{Info: info, Data: data})
}

// NewConfidencePixelBuffer packs row-major confidence values into a single plane buffer.
func NewConfidencePixelBuffer(width, height int, conf []Confidence) *MemoryPixelBuffer {
	data := make([]byte, len(conf))
	for i, c := range conf {
		data[i] = byte(c)
	}
	info := PlaneInfo{Width: width, Height: height, BytesPerRow: width}
	return NewMemoryPixelBuffer(width, height, MemoryPlane{Info: info, Data: data})
}

// NewYCbCrPixelBuffer returns a biplanar buffer from a full resolution luma plane and a half
// resolution interleaved Cb,Cr plane, both tightly packed.
func NewYCbCrPixelBuffer(width, height int, luma, cbcr []byte) *MemoryPixelBuffer {
	chromaWidth, chromaHeight := (width+1)/2, (height+1)/2
	return NewMemoryPixelBuffer(width, height,
		MemoryPlane{Info: PlaneInfo{Width: width, Height: height, BytesPerRow: width}, Data: luma},
		MemoryPlane{
			Info: PlaneInfo{Width: chromaWidth, Height: chromaHeight, BytesPerRow: 2 * chromaWidth},
			Data: cbcr,
		},
	)
}

// Width returns the image width.
func (buf *MemoryPixelBuffer) Width() int {
	return buf.width
}

// Height returns the image height.
func (buf *MemoryPixelBuffer) Height() int {
	return buf.height
}

// PlaneCount returns the number of planes.
func (buf *MemoryPixelBuffer) PlaneCount() int {
	return len(buf.planes)
}

// LockReadOnly takes a shared lock on the buffer.
func (buf *MemoryPixelBuffer) LockReadOnly() error {
	buf.mu.RLock()
	buf.readers.Inc()
	buf.locks.Inc()
	return nil
}

// UnlockReadOnly releases a shared lock taken by LockReadOnly.
func (buf *MemoryPixelBuffer) UnlockReadOnly() error {
	for {
		n := buf.readers.Load()
		if n <= 0 {
			return ErrNotLocked
		}
		if buf.readers.CompareAndSwap(n, n-1) {
			break
		}
	}
	buf.mu.RUnlock()
	return nil
}

// Plane returns plane i. The buffer must be locked.
func (buf *MemoryPixelBuffer) Plane(i int) (PlaneInfo, []byte, error) {
	if buf.readers.Load() <= 0 {
		return PlaneInfo{}, nil, ErrNotLocked
	}
	if i < 0 || i >= len(buf.planes) {
		return PlaneInfo{}, nil, errors.Wrapf(ErrMissingPlane, "plane %d of %d", i, len(buf.planes))
	}
	p := buf.planes[i]
	return p.Info, p.Data, nil
}

// Locked reports whether any read lock is currently held.
func (buf *MemoryPixelBuffer) Locked() bool {
	return buf.readers.Load() > 0
}

// LockCount returns how many times the buffer has been locked over its lifetime.
func (buf *MemoryPixelBuffer) LockCount() int64 {
	return buf.locks.Load()
}
