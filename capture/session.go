// Package capture runs frames through reconstruction and accumulates the points of a capture.
//
// At most one frame is reconstructed at a time. A frame that arrives while another is being
// reconstructed is dropped rather than queued; only the newest data is worth processing.
package capture

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"go.viam.com/depthcloud/config"
	"go.viam.com/depthcloud/logging"
	"go.viam.com/depthcloud/pointcloud"
	"go.viam.com/depthcloud/reconstruction"
	"go.viam.com/depthcloud/utils"
)

// frameTimingWindow is how many frames the average reconstruction time covers.
const frameTimingWindow = 30

// RenderSink receives the point cloud to display after it changes. A nil buffer means the
// visualization should be removed.
type RenderSink interface {
	UpdatePointCloud(rb *pointcloud.RenderBuffer)
}

// RenderSinkFunc adapts a function to a RenderSink.
type RenderSinkFunc func(rb *pointcloud.RenderBuffer)

// UpdatePointCloud calls f.
func (f RenderSinkFunc) UpdatePointCloud(rb *pointcloud.RenderBuffer) {
	f(rb)
}

// Stats is a point in time summary of a session.
type Stats struct {
	FramesProcessed      int64
	FramesDropped        int64
	FramesCaptured       int64
	Points               int
	LastFrameDuration    time.Duration
	AverageFrameDuration time.Duration
	P95FrameDuration     time.Duration
	LastFrameAt          time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for timing. Tests use a mock clock.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) {
		s.clk = clk
	}
}

// WithRenderSink sets where rebuilt render buffers are delivered.
func WithRenderSink(sink RenderSink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// Session owns the accumulated point cloud of one capture and the drop-on-busy gate in front
// of the reconstructor.
type Session struct {
	id     uuid.UUID
	logger logging.Logger
	clk    clock.Clock
	sink   RenderSink

	reconstructor *reconstruction.Reconstructor
	store         *pointcloud.Store
	workers       utils.StoppableWorkers
	inflight      sync.WaitGroup

	busy      atomic.Bool
	capturing atomic.Bool
	processed atomic.Int64
	dropped   atomic.Int64
	captured  atomic.Int64

	timingMu     sync.Mutex
	lastDuration time.Duration
	lastFrameAt  time.Time
	frameTimes   *utils.RollingAverage
}

// NewSession returns a session that is not capturing yet.
func NewSession(cfg *config.Config, logger logging.Logger, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	id := uuid.New()
	logger = logger.Sublogger("capture").With("session", id.String())

	reconstructor, err := reconstruction.NewReconstructor(cfg.Reconstruction, logger.Sublogger("reconstruction"))
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:            id,
		logger:        logger,
		clk:           clock.New(),
		reconstructor: reconstructor,
		store:         pointcloud.NewStore(),
		workers:       utils.NewStoppableWorkers(),
		frameTimes:    utils.NewRollingAverage(frameTimingWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the unique id of the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Store returns the accumulated points.
func (s *Session) Store() *pointcloud.Store {
	return s.store
}

// HandleFrame reconstructs frame on the calling goroutine. It returns false without doing any
// work if another frame is being reconstructed.
func (s *Session) HandleFrame(ctx context.Context, frame *reconstruction.FrameInputs) bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.drop(frame)
		return false
	}
	defer s.busy.Store(false)
	s.process(ctx, frame)
	return true
}

// SubmitFrame reconstructs frame on a background goroutine and returns immediately. It returns
// false if the frame was dropped because another frame is being reconstructed or the session is
// closed. When it returns true the buffers of frame must stay valid until the frame has been
// processed.
func (s *Session) SubmitFrame(frame *reconstruction.FrameInputs) bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.drop(frame)
		return false
	}
	s.inflight.Add(1)
	if !s.workers.AddWorker(func(ctx context.Context) {
		defer s.inflight.Done()
		defer s.busy.Store(false)
		s.process(ctx, frame)
	}) {
		s.busy.Store(false)
		s.inflight.Done()
		return false
	}
	return true
}

// WaitIdle blocks until a frame passed to SubmitFrame has been processed. It must not be called
// concurrently with SubmitFrame.
func (s *Session) WaitIdle() {
	s.inflight.Wait()
}

// Busy reports whether a frame is being reconstructed.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

func (s *Session) drop(frame *reconstruction.FrameInputs) {
	n := s.dropped.Inc()
	if frame != nil {
		s.logger.Debugw("frame dropped while busy", "timestamp", frame.Timestamp, "dropped", n)
	}
}

func (s *Session) process(ctx context.Context, frame *reconstruction.FrameInputs) {
	start := s.clk.Now()
	vertices := s.reconstructor.Reconstruct(ctx, frame)
	elapsed := s.clk.Since(start)

	s.processed.Inc()
	s.frameTimes.Add(elapsed)
	s.timingMu.Lock()
	s.lastDuration = elapsed
	s.lastFrameAt = start
	s.timingMu.Unlock()

	if !s.capturing.Load() || len(vertices) == 0 {
		return
	}
	s.store.Append(vertices)
	s.captured.Inc()
	s.logger.Debugw("frame captured", "points", len(vertices), "total", s.store.Size(), "duration", elapsed)
	if s.sink != nil {
		s.sink.UpdatePointCloud(s.store.RenderBuffer())
	}
}

// StartCapture makes processed frames append their points to the store.
func (s *Session) StartCapture() {
	if s.capturing.CompareAndSwap(false, true) {
		s.logger.Info("capture started")
	}
}

// StopCapture stops appending points. Frames are still reconstructed.
func (s *Session) StopCapture() {
	if s.capturing.CompareAndSwap(true, false) {
		s.logger.Infow("capture stopped", "points", s.store.Size())
	}
}

// Capturing reports whether points are being accumulated.
func (s *Session) Capturing() bool {
	return s.capturing.Load()
}

// Clear drops every accumulated point and removes the visualization.
func (s *Session) Clear() {
	s.store.Clear()
	s.captured.Store(0)
	if s.sink != nil {
		s.sink.UpdatePointCloud(nil)
	}
	s.logger.Info("point cloud cleared")
}

// Export writes a snapshot of the accumulated points as PLY. Capture may continue while the
// export runs; points appended afterwards are not included.
func (s *Session) Export(ctx context.Context, w io.Writer) error {
	snapshot := s.store.Snapshot()
	defer utils.SlowLogger(ctx, s.clk, "waiting for export", "points", len(snapshot), s.logger)()
	return pointcloud.ToPLY(ctx, snapshot, w)
}

// ExportFile writes a snapshot of the accumulated points to fn. A partially written file is
// removed on failure.
func (s *Session) ExportFile(ctx context.Context, fn string, format pointcloud.Format) error {
	snapshot := s.store.Snapshot()
	defer utils.SlowLogger(ctx, s.clk, "waiting for export", "points", len(snapshot), s.logger)()
	if err := pointcloud.WriteFile(ctx, snapshot, fn, format); err != nil {
		utils.RemoveFileNoError(fn)
		return err
	}
	s.logger.Infow("point cloud exported", "path", fn, "format", format, "points", len(snapshot))
	return nil
}

// Stats returns counters and timing for the session.
func (s *Session) Stats() Stats {
	p95, err := s.frameTimes.Percentile(95)
	if err != nil {
		s.logger.Debugw("frame time percentile unavailable", "error", err)
	}
	s.timingMu.Lock()
	defer s.timingMu.Unlock()
	return Stats{
		FramesProcessed:      s.processed.Load(),
		FramesDropped:        s.dropped.Load(),
		FramesCaptured:       s.captured.Load(),
		Points:               s.store.Size(),
		LastFrameDuration:    s.lastDuration,
		AverageFrameDuration: s.frameTimes.Average(),
		P95FrameDuration:     p95,
		LastFrameAt:          s.lastFrameAt,
	}
}

// Close cancels a submitted frame that is still being reconstructed and waits for it to return.
// Frames submitted afterwards are rejected.
func (s *Session) Close() error {
	s.workers.Stop()
	return nil
}
