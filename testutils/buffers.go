package testutils

import (
	"go.viam.com/depthcloud/rimage"
)

// BlockingPixelBuffer is a pixel buffer whose LockReadOnly waits until Release is called. It
// lets tests hold a reconstruction in progress.
type BlockingPixelBuffer struct {
	*rimage.MemoryPixelBuffer
	entered chan struct{}
	release chan struct{}
}

// NewBlockingPixelBuffer wraps buf.
func NewBlockingPixelBuffer(buf *rimage.MemoryPixelBuffer) *BlockingPixelBuffer {
	return &BlockingPixelBuffer{
		MemoryPixelBuffer: buf,
		entered:           make(chan struct{}, 1),
		release:           make(chan struct{}),
	}
}

// LockReadOnly signals Entered and then blocks until Release.
func (buf *BlockingPixelBuffer) LockReadOnly() error {
	select {
	case buf.entered <- struct{}{}:
	default:
	}
	<-buf.release
	return buf.MemoryPixelBuffer.LockReadOnly()
}

// Entered is signaled when a reader starts waiting for the lock.
func (buf *BlockingPixelBuffer) Entered() <-chan struct{} {
	return buf.entered
}

// Release lets every current and future LockReadOnly proceed.
func (buf *BlockingPixelBuffer) Release() {
	close(buf.release)
}
