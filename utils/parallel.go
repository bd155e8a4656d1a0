package utils

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// RowBand is a half open range of rows [From, To) assigned to one worker.
type RowBand struct {
	Index int
	From  int
	To    int
}

// SplitRows divides height rows into at most n contiguous bands of near equal size. Bands are
// returned in row order.
func SplitRows(height, n int) []RowBand {
	if height <= 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}
	if n > height {
		n = height
	}
	bands := make([]RowBand, 0, n)
	size, extra := height/n, height%n
	from := 0
	for i := 0; i < n; i++ {
		to := from + size
		if i < extra {
			to++
		}
		bands = append(bands, RowBand{Index: i, From: from, To: to})
		from = to
	}
	return bands
}

// ParallelForEachRowBand splits height rows into bands and calls f for each band on its own
// goroutine. parallelism <= 0 means ParallelFactor. The first error returned by any f cancels the
// context handed to the others and is returned once all bands are done.
func ParallelForEachRowBand(
	ctx context.Context,
	height, parallelism int,
	f func(ctx context.Context, band RowBand) error,
) error {
	if parallelism <= 0 {
		parallelism = ParallelFactor
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for _, band := range SplitRows(height, parallelism) {
		group.Go(func() error {
			return f(groupCtx, band)
		})
	}
	return group.Wait()
}
