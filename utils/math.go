package utils

import "cmp"

// Clamp limits v to [low, high].
func Clamp[T cmp.Ordered](v, low, high T) T {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
