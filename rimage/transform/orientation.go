package transform

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnsupportedOrientation is returned for device orientations other than portrait. The camera
// correction below is only derived for portrait capture.
var ErrUnsupportedOrientation = errors.New("only portrait device orientation is supported")

// Orientation is the interface orientation of the device when a frame was captured.
type Orientation int

// Device orientations. The zero value is Portrait.
const (
	Portrait Orientation = iota
	PortraitUpsideDown
	LandscapeLeft
	LandscapeRight
)

func (o Orientation) String() string {
	switch o {
	case Portrait:
		return "portrait"
	case PortraitUpsideDown:
		return "portrait_upside_down"
	case LandscapeLeft:
		return "landscape_left"
	case LandscapeRight:
		return "landscape_right"
	}
	return "unknown"
}

// ParseOrientation parses the String form of an orientation. The empty string is Portrait.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "", "portrait":
		return Portrait, nil
	case "portrait_upside_down":
		return PortraitUpsideDown, nil
	case "landscape_left":
		return LandscapeLeft, nil
	case "landscape_right":
		return LandscapeRight, nil
	}
	return Portrait, errors.Errorf("unknown device orientation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Orientation) UnmarshalText(text []byte) error {
	parsed, err := ParseOrientation(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
