package cli

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/depthcloud/capture"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/reconstruction"
	"go.viam.com/depthcloud/utils"
)

// WatchAction reconstructs frame files as they appear in a directory. A frame written while the
// previous one is still being reconstructed is dropped. The accumulated points are exported when
// the command is interrupted.
func WatchAction(c *cli.Context) (err error) {
	if c.NArg() != 1 {
		return errors.New("exactly one directory to watch is required")
	}
	dir := c.Args().First()
	rs, err := loadSettings(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, rs.Close())
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, watcher.Close())
	}()
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "cannot watch %q", dir)
	}

	session, err := rs.newSession()
	if err != nil {
		return err
	}
	if !c.Bool(flagNoCapture) {
		session.StartCapture()
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rs.logger.Infow("watching for frames", "dir", dir, "session", session.ID().String())

	watchErr := watchFrames(ctx, c, watcher, dir, session, rs.logger)
	session.WaitIdle()
	closeErr := session.Close()
	if watchErr != nil {
		return multierr.Combine(watchErr, closeErr)
	}

	// the watch context is done, so export with the parent context
	if err := session.ExportFile(context.WithoutCancel(ctx), rs.out, rs.format); err != nil {
		return multierr.Combine(err, closeErr)
	}
	printStats(c, session)
	printf(c.App.Writer, "wrote %d points to %s", session.Store().Size(), rs.out)
	return closeErr
}

func isFrameFile(dir, path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json") && utils.InDir(dir, path)
}

func watchFrames(
	ctx context.Context,
	c *cli.Context,
	watcher *fsnotify.Watcher,
	dir string,
	session *capture.Session,
	logger logging.Logger,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(werr, "watching frames")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isFrameFile(dir, event.Name) {
				continue
			}
			rf, err := reconstruction.ReadFrameFile(event.Name)
			if err != nil {
				// files are often seen before they are completely written
				logger.Debugw("skipping unreadable frame", "path", event.Name, "error", err)
				continue
			}
			inputs, err := rf.Inputs()
			if err != nil {
				logger.Warnw("skipping invalid frame", "path", event.Name, "error", err)
				continue
			}
			if !session.SubmitFrame(inputs) {
				logger.Debugw("frame dropped", "path", event.Name)
				continue
			}
			if c.Bool(flagVerbose) {
				printf(c.App.Writer, "queued %s", filepath.Base(event.Name))
			}
		}
	}
}
