package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/depthcloud/logging"
)

// Read reads a config from the given file, expanding ${ENV} references first.
func Read(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger logging.Logger,
) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	cfg.ConfigFilePath = originalPath

	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	logger.Debugw("config loaded",
		"path", originalPath,
		"max_depth_m", cfg.Reconstruction.MaxDepthMeters,
		"color_mode", cfg.Reconstruction.ColorMode,
		"parallelism", cfg.Reconstruction.Parallelism,
		"export_format", cfg.Export.Format)
	return cfg, nil
}
