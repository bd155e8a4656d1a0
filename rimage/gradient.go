package rimage

import (
	"go.viam.com/depthcloud/utils"
)

// DefaultMaxDepth is the far end of the usable sensing range in meters.
const DefaultMaxDepth = 2.0

// NormalizedDistance maps a depth in meters onto [0, 1]; depths at or beyond maxDepth saturate
// to 1.
func NormalizedDistance(depth, maxDepth float32) float32 {
	return min(depth/maxDepth, 1)
}

// DistanceColor maps a normalized distance onto a blue, cyan, green, yellow, red gradient. Each
// of the four transitions spans a quarter of the range.
func DistanceColor(distance float32) Color {
	d := utils.Clamp(distance, 0, 1)
	switch {
	case d < 0.25:
		return NewColor(0, 4*d, 1)
	case d < 0.5:
		return NewColor(0, 1, 1-4*(d-0.25))
	case d < 0.75:
		return NewColor(4*(d-0.5), 1, 0)
	default:
		return NewColor(1, 1-4*(d-0.75), 0)
	}
}
