package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/reconstruction"
)

// ReplayAction reconstructs each recorded frame given as an argument, in order, and exports
// everything captured. Frames are handled one at a time so none are dropped.
func ReplayAction(c *cli.Context) (err error) {
	if c.NArg() == 0 {
		return errors.New("no frame files given")
	}
	rs, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, rs.Close())
	}()
	session, err := rs.newSession()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, session.Close())
	}()
	session.StartCapture()

	for _, fn := range c.Args().Slice() {
		if err := c.Context.Err(); err != nil {
			return err
		}
		rf, err := reconstruction.ReadFrameFile(fn)
		if err != nil {
			return err
		}
		inputs, err := rf.Inputs()
		if err != nil {
			return errors.Wrapf(err, "invalid frame %q", fn)
		}
		before := session.Store().Size()
		session.HandleFrame(c.Context, inputs)
		if session.Store().Size() == before {
			warningf(c.App.ErrWriter, "frame %q produced no points", fn)
		}
	}

	if err := session.ExportFile(c.Context, rs.out, rs.format); err != nil {
		return err
	}
	printStats(c, session)
	printf(c.App.Writer, "wrote %d points to %s", session.Store().Size(), rs.out)
	return nil
}
