// Package config defines the settings of a depth capture session.
package config

import (
	"math"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/rimage"
	rutils "go.viam.com/depthcloud/utils"
)

// ColorMode selects how reconstructed points are colored.
type ColorMode string

const (
	// ColorModeDepth colors points by their distance from the camera.
	ColorModeDepth ColorMode = "depth"
	// ColorModeCamera colors points with the camera image.
	ColorModeCamera ColorMode = "camera"
)

// Config is the full configuration of a capture session.
type Config struct {
	Reconstruction Reconstruction `json:"reconstruction"`
	Export         Export         `json:"export"`
	LogLevel       string         `json:"log_level,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Reconstruction configures how a single frame is turned into points.
type Reconstruction struct {
	// MaxDepthMeters is the far limit of accepted depth samples. It also anchors the red end of
	// the distance gradient.
	MaxDepthMeters float32   `json:"max_depth_m,omitempty"`
	ColorMode      ColorMode `json:"color_mode,omitempty"`
	// Parallelism is the number of row bands processed concurrently.
	Parallelism int `json:"parallelism,omitempty"`
}

// Export configures where accumulated points are written.
type Export struct {
	Format string `json:"format,omitempty"`
	Path   string `json:"path,omitempty"`
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	//nolint:errcheck
	cfg.Validate("")
	return cfg
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (c *Config) Validate(path string) error {
	if err := c.Reconstruction.Validate(joinPath(path, "reconstruction")); err != nil {
		return err
	}
	if err := c.Export.Validate(joinPath(path, "export")); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// Level returns the configured log level, INFO when unset.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// Validate ensures the reconstruction settings are usable and fills in defaults.
func (r *Reconstruction) Validate(path string) error {
	switch {
	case r.MaxDepthMeters == 0:
		r.MaxDepthMeters = rimage.DefaultMaxDepth
	case r.MaxDepthMeters < 0 || math.IsNaN(float64(r.MaxDepthMeters)) || math.IsInf(float64(r.MaxDepthMeters), 0):
		return utils.NewConfigValidationError(path,
			errors.Errorf("max_depth_m must be a positive number of meters, got %v", r.MaxDepthMeters))
	}

	switch r.ColorMode {
	case "":
		r.ColorMode = ColorModeDepth
	case ColorModeDepth, ColorModeCamera:
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("color_mode must be %q or %q, got %q", ColorModeDepth, ColorModeCamera, r.ColorMode))
	}

	if r.Parallelism < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("parallelism cannot be negative, got %d", r.Parallelism))
	}
	if r.Parallelism == 0 {
		r.Parallelism = rutils.ParallelFactor
	}
	return nil
}

// Validate ensures the export settings are usable and fills in defaults.
func (e *Export) Validate(path string) error {
	var (
		format pointcloud.Format
		err    error
	)
	if e.Format == "" && e.Path != "" {
		format, err = pointcloud.FormatFromPath(e.Path)
	} else {
		format, err = pointcloud.ParseFormat(e.Format)
	}
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	e.Format = string(format)
	return nil
}

// PointCloudFormat returns the validated export format.
func (e Export) PointCloudFormat() pointcloud.Format {
	return pointcloud.Format(e.Format)
}
