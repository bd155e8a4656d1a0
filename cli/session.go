package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/capture"
	"go.viam.com/depthcloud/config"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
)

// runSettings is the resolved configuration of a command.
type runSettings struct {
	cfg     *config.Config
	out     string
	format  pointcloud.Format
	logger  logging.Logger
	logFile io.Closer // set by --log-file
}

func loadSettings(c *cli.Context) (_ *runSettings, err error) {
	rs := &runSettings{out: c.String(flagOut)}
	if fn := c.String(flagLogFile); fn != "" {
		rs.logger, rs.logFile = logging.NewLoggerWithFile("depthcloud", fn)
		defer func() {
			if err != nil {
				err = multierr.Combine(err, rs.Close())
			}
		}()
	} else {
		rs.logger = logging.NewLogger("depthcloud")
	}
	logger := rs.logger

	cfg := config.Default()
	if fn := c.String(flagConfig); fn != "" {
		if cfg, err = config.Read(c.Context, fn, logger); err != nil {
			return nil, errors.Wrapf(err, "cannot read config %q", fn)
		}
	}
	logger.SetLevel(cfg.Level())
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}

	if c.IsSet(flagMaxDepth) {
		cfg.Reconstruction.MaxDepthMeters = float32(c.Float64(flagMaxDepth))
	}
	if c.IsSet(flagColorMode) {
		cfg.Reconstruction.ColorMode = config.ColorMode(c.String(flagColorMode))
	}
	if c.IsSet(flagParallel) {
		cfg.Reconstruction.Parallelism = c.Int(flagParallel)
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}

	rs.cfg = cfg
	if rs.out == "" {
		rs.out = cfg.Export.Path
	}
	if rs.out == "" {
		return nil, errors.Errorf("no output file; pass --%s or set export.path in the config", flagOut)
	}

	switch {
	case c.IsSet(flagFormat):
		rs.format, err = pointcloud.ParseFormat(c.String(flagFormat))
	case c.IsSet(flagOut):
		rs.format, err = pointcloud.FormatFromPath(rs.out)
	default:
		rs.format = cfg.Export.PointCloudFormat()
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// Close releases the log file, if any.
func (rs *runSettings) Close() error {
	if rs.logFile == nil {
		return nil
	}
	return rs.logFile.Close()
}

func (rs *runSettings) newSession() (*capture.Session, error) {
	logger := rs.logger
	sink := capture.RenderSinkFunc(func(rb *pointcloud.RenderBuffer) {
		logger.Debugw("point cloud updated", "points", rb.Len())
	})
	return capture.NewSession(rs.cfg, rs.logger, capture.WithRenderSink(sink))
}

func printStats(c *cli.Context, session *capture.Session) {
	stats := session.Stats()
	center := "-"
	if meta := session.Store().MetaData(); !meta.Empty() {
		p := meta.Center()
		center = fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Z)
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Stat", "Value"})
	t.AppendRows([]table.Row{
		{"frames processed", stats.FramesProcessed},
		{"frames captured", stats.FramesCaptured},
		{"frames dropped", stats.FramesDropped},
		{"points", stats.Points},
		{"avg frame time", stats.AverageFrameDuration.String()},
		{"p95 frame time", stats.P95FrameDuration.String()},
		{"bounds center", center},
	})
	printf(c.App.Writer, "%s", t.Render())
}
