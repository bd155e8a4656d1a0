// Package cli contains the depthcloud command line tool.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig    = "config"
	flagDebug     = "debug"
	flagOut       = "out"
	flagFormat    = "format"
	flagMaxDepth  = "max-depth"
	flagColorMode = "color-mode"
	flagParallel  = "parallel"
	flagNoCapture = "no-capture"
	flagVerbose   = "verbose"
	flagLogFile   = "log-file"
)

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    flagOut,
		Aliases: []string{"o"},
		Usage:   "write the point cloud to `FILE`",
	},
	&cli.StringFlag{
		Name:    flagFormat,
		Aliases: []string{"f"},
		Usage:   "output format: ply, pcd or las; defaults to the extension of --out",
	},
	&cli.Float64Flag{
		Name:  flagMaxDepth,
		Usage: "ignore depth samples farther than this many meters",
	},
	&cli.StringFlag{
		Name:  flagColorMode,
		Usage: "color points by `MODE`: depth or camera",
	},
	&cli.IntFlag{
		Name:  flagParallel,
		Usage: "number of row bands reconstructed concurrently",
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "depthcloud",
		Usage:           "build colored point clouds from recorded depth frames",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to `FILE`, rotating it as it grows",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "replay",
				Usage:     "reconstruct recorded frames in order and export the accumulated points",
				ArgsUsage: "<frame.json>...",
				Flags:     commonFlags,
				Action:    ReplayAction,
			},
			{
				Name:      "watch",
				Usage:     "reconstruct frames as they are written to a directory, export on interrupt",
				ArgsUsage: "<directory>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  flagNoCapture,
						Usage: "reconstruct frames without accumulating them",
					},
					&cli.BoolFlag{
						Name:    flagVerbose,
						Aliases: []string{"v"},
						Usage:   "print each frame as it is accepted",
					},
				}, commonFlags...),
				Action: WatchAction,
			},
		},
	}
}

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\x1b[1;33mWarning:\x1b[0m "+format+"\n", a...)
}
