package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/depthcloud/logging"
)

// SlowLogger starts a goroutine that logs every few seconds until the returned func is called or
// ctx is done. It is used to report progress on operations that can run for a long time.
func SlowLogger(
	ctx context.Context,
	clk clock.Clock,
	msg, fieldName string,
	fieldVal interface{},
	logger logging.Logger,
) func() {
	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := clk.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait := 2 * time.Second
		for {
			select {
			case <-clk.After(wait):
				elapsed := clk.Since(startTime).Round(time.Second).String()
				logger.Warnw(msg, fieldName, fieldVal, "time_elapsed", elapsed)
				if wait < 5*time.Second {
					wait += 3 * time.Second / 2
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
