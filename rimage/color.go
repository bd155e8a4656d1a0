package rimage

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"go.viam.com/depthcloud/utils"
)

// Color is a normalized RGBA color with every channel in [0, 1]. Colors produced by this package
// are always fully opaque.
type Color struct {
	R, G, B, A float32
}

// NewColor returns an opaque color.
func NewColor(r, g, b float32) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

func channel255(v float32) uint8 {
	return uint8(utils.Clamp(math.Round(float64(v)*255), 0, 255))
}

// RGB255 returns the color channels scaled to [0, 255], rounded to the nearest integer and
// clamped.
func (c Color) RGB255() (uint8, uint8, uint8) {
	return channel255(c.R), channel255(c.G), channel255(c.B)
}

// NRGBA converts the color to a non-premultiplied 8 bit color.
func (c Color) NRGBA() color.NRGBA {
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: channel255(c.A)}
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return c.NRGBA().RGBA()
}

// Hex returns the color formatted as #rrggbb.
func (c Color) Hex() string {
	cc, ok := colorful.MakeColor(c)
	if !ok {
		return "#000000"
	}
	return cc.Hex()
}

func (c Color) String() string {
	return fmt.Sprintf("%s (%.3f,%.3f,%.3f,%.3f)", c.Hex(), c.R, c.G, c.B, c.A)
}
