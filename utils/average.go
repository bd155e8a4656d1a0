package utils

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// RollingAverage is the mean of the most recent durations added to it.
type RollingAverage struct {
	mu    sync.Mutex
	data  []time.Duration
	pos   int
	count int
}

// NewRollingAverage returns an average over the last numSamples values.
func NewRollingAverage(numSamples int) *RollingAverage {
	if numSamples < 1 {
		numSamples = 1
	}
	return &RollingAverage{data: make([]time.Duration, numSamples)}
}

// NumSamples returns the window size.
func (ra *RollingAverage) NumSamples() int {
	return len(ra.data)
}

// Add records a sample, evicting the oldest once the window is full.
func (ra *RollingAverage) Add(d time.Duration) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.data[ra.pos] = d
	ra.pos++
	if ra.pos >= len(ra.data) {
		ra.pos = 0
	}
	if ra.count < len(ra.data) {
		ra.count++
	}
}

// Average returns the mean of the recorded samples, or 0 before the first Add.
func (ra *RollingAverage) Average() time.Duration {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	if ra.count == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ra.data[:ra.count] {
		sum += d
	}
	return sum / time.Duration(ra.count)
}

// Percentile returns the given percentile (0, 100] of the recorded samples, or 0 before the first Add.
func (ra *RollingAverage) Percentile(percent float64) (time.Duration, error) {
	ra.mu.Lock()
	samples := make(stats.Float64Data, 0, ra.count)
	for _, d := range ra.data[:ra.count] {
		samples = append(samples, float64(d))
	}
	ra.mu.Unlock()
	if len(samples) == 0 {
		return 0, nil
	}
	p, err := stats.Percentile(samples, percent)
	if err != nil {
		return 0, err
	}
	return time.Duration(p), nil
}
