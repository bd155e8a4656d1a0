// Package pointcloud holds the colored points reconstructed from depth frames and writes them
// out as flat vertex lists.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/depthcloud/rimage"
)

// Vertex is a single colored point in world space. Position is in meters.
type Vertex struct {
	Position r3.Vector
	Color    rimage.Color
}

// NewVertex convenience method for creating a vertex.
func NewVertex(x, y, z float64, c rimage.Color) Vertex {
	return Vertex{Position: r3.Vector{X: x, Y: y, Z: z}, Color: c}
}

// MetaData is data about what's stored in a collection of vertices.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	inited bool // just to prevent someone creating the wrong way
}

// NewMetaData creates an empty MetaData whose bounds are inverted so the first merged point
// defines them.
func NewMetaData() MetaData {
	return MetaData{
		MinX:   math.MaxFloat64,
		MinY:   math.MaxFloat64,
		MinZ:   math.MaxFloat64,
		MaxX:   -math.MaxFloat64,
		MaxY:   -math.MaxFloat64,
		MaxZ:   -math.MaxFloat64,
		inited: true,
	}
}

// Merge grows the bounds to include v.
func (meta *MetaData) Merge(v r3.Vector) {
	if !meta.inited {
		*meta = NewMetaData()
	}
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
}

// Empty reports whether no point has been merged.
func (meta MetaData) Empty() bool {
	return !meta.inited || meta.MinX > meta.MaxX
}

// Center returns the center of the bounding box.
func (meta MetaData) Center() r3.Vector {
	return r3.Vector{
		X: (meta.MinX + meta.MaxX) / 2,
		Y: (meta.MinY + meta.MaxY) / 2,
		Z: (meta.MinZ + meta.MaxZ) / 2,
	}
}
