package pointcloud

import (
	"context"
	"io"
	"sync"
)

// Store is the accumulated point cloud of a capture session. All operations are serialized so
// frames can be appended while another goroutine exports or renders.
type Store struct {
	mu       sync.Mutex
	vertices []Vertex
	meta     MetaData
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{meta: NewMetaData()}
}

// Append adds vertices to the end of the store, preserving their order.
func (s *Store) Append(vertices []Vertex) {
	if len(vertices) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vertices = append(s.vertices, vertices...)
	for _, v := range vertices {
		s.meta.Merge(v.Position)
	}
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vertices = nil
	s.meta = NewMetaData()
}

// Size returns the number of stored vertices.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vertices)
}

// MetaData returns the bounds of the stored vertices.
func (s *Store) MetaData() MetaData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// Snapshot returns a copy of every stored vertex in insertion order.
func (s *Store) Snapshot() []Vertex {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Vertex, len(s.vertices))
	copy(out, s.vertices)
	return out
}

// RenderBuffer builds a renderer ready buffer from the current contents, or nil when empty.
func (s *Store) RenderBuffer() *RenderBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewRenderBuffer(s.vertices)
}

// WritePLY exports a snapshot of the store. The store is not held while writing.
func (s *Store) WritePLY(ctx context.Context, w io.Writer) error {
	return ToPLY(ctx, s.Snapshot(), w)
}
