package pointcloud

// Primitive is how a renderer connects the vertices of a RenderBuffer.
type Primitive int

// PrimitivePoint draws each vertex as an independent point.
const PrimitivePoint Primitive = iota

func (p Primitive) String() string {
	if p == PrimitivePoint {
		return "point"
	}
	return "unknown"
}

// RenderBuffer is a flat, renderer ready copy of a point cloud. It is rebuilt from scratch every
// time and never modified afterwards.
type RenderBuffer struct {
	// Positions holds x, y, z per vertex.
	Positions []float32
	// Colors holds r, g, b, a per vertex.
	Colors []float32
	// Indices holds one index per vertex, 0..n-1.
	Indices   []int32
	Primitive Primitive
}

// NewRenderBuffer flattens vertices. It returns nil for an empty input so the caller removes any
// existing visualization instead of drawing an empty one.
func NewRenderBuffer(vertices []Vertex) *RenderBuffer {
	if len(vertices) == 0 {
		return nil
	}
	rb := &RenderBuffer{
		Positions: make([]float32, 0, 3*len(vertices)),
		Colors:    make([]float32, 0, 4*len(vertices)),
		Indices:   make([]int32, len(vertices)),
		Primitive: PrimitivePoint,
	}
	for i, v := range vertices {
		rb.Positions = append(rb.Positions, float32(v.Position.X), float32(v.Position.Y), float32(v.Position.Z))
		rb.Colors = append(rb.Colors, v.Color.R, v.Color.G, v.Color.B, v.Color.A)
		rb.Indices[i] = int32(i)
	}
	return rb
}

// Len returns the number of vertices in the buffer.
func (rb *RenderBuffer) Len() int {
	if rb == nil {
		return 0
	}
	return len(rb.Indices)
}
