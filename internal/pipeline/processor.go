// Package pipeline implements the real-time plate recognition pipeline: a
// per-session StreamProcessor that ingests frames, tracks vehicles, detects
// plate regions, reads plate text and emits one best-quality record per
// vehicle. Stages run as independent goroutines connected by bounded queues;
// when a stage cannot keep up, items are dropped rather than blocking the
// stream (freshness over completeness).
package pipeline

import (
	"context"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/capture"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/detect"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/vehicle"
)

// fpsWindow is the number of processed frames the throughput estimate is
// averaged over.
const fpsWindow = 30

// Config holds the per-session pipeline settings. Zero values fall back to
// the defaults of the reference deployment.
type Config struct {
	SourceURL string
	StreamID  string

	// SkipFrames is the decimation factor N: only every Nth captured frame
	// is forwarded downstream. Default 3.
	SkipFrames int

	// QueueCapacity bounds each processing queue. Default 10.
	QueueCapacity int

	// DisplayCapacity bounds the preview queue. Default 2; it only needs
	// the newest frame.
	DisplayCapacity int

	// StageTimeout bounds every inter-stage put/get. Default 1s.
	StageTimeout time.Duration

	// ReconnectBackoff is the wait before the single reopen attempt after
	// a source read failure. Default 2s.
	ReconnectBackoff time.Duration

	// ResultsCapacity bounds the recent-results history. Default 50.
	ResultsCapacity int

	// JoinTimeout bounds how long Stop waits for stage goroutines before
	// abandoning them. Default 2s.
	JoinTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SkipFrames < 1 {
		c.SkipFrames = 3
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 10
	}
	if c.DisplayCapacity <= 0 {
		c.DisplayCapacity = 2
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = time.Second
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = 2 * time.Second
	}
	if c.ResultsCapacity <= 0 {
		c.ResultsCapacity = 50
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 2 * time.Second
	}
	return c
}

// Services are the external model services the pipeline consumes. All three
// are opaque; any implementation works, including test doubles.
type Services struct {
	Tracker detect.VehicleTracker
	Plates  detect.PlateDetector
	Reader  detect.PlateReader
}

// RecordSink receives each finalized record. Sinks must tolerate concurrent
// calls from multiple sessions.
type RecordSink interface {
	SaveRecord(streamID string, rec *vehicle.Record) error
}

// ImageSink is an optional upgrade for a RecordSink that also archives the
// best plate crop alongside the record.
type ImageSink interface {
	SavePlateImage(streamID string, rec *vehicle.Record, img image.Image) error
}

// finalized pairs a record with the plate crop it was selected from.
type finalized struct {
	rec *vehicle.Record
	img image.Image
}

// Stats is a snapshot of the session's throughput counters.
type Stats struct {
	FramesIngested int64   `json:"frames_ingested"`
	FramesDropped  int64   `json:"frames_dropped"`
	TasksDropped   int64   `json:"tasks_dropped"`
	FPS            float64 `json:"fps"`
}

type vehicleTask struct {
	Frame   capture.Frame
	TrackID int
	Box     detect.Box
}

type plateTask struct {
	TrackID     int
	VehicleCrop image.Image
	PlateCrop   image.Image
	Box         detect.Box
	Confidence  float64
}

// StreamProcessor owns one session: the stage goroutines, the bounded queues
// between them, the track-id to Vehicle table and the bounded results
// history. All mutation of the vehicle table and results history goes
// through its mutex; cross-stage data travels only through the queues.
type StreamProcessor struct {
	cfg    Config
	logger *slog.Logger
	open   capture.SourceOpener
	svc    Services
	sinks  []RecordSink

	frameQ   *BoundedQueue[capture.Frame]
	vehicleQ *BoundedQueue[vehicleTask]
	plateQ   *BoundedQueue[plateTask]
	displayQ *BoundedQueue[image.Image]

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	vehicles map[int]*vehicle.Vehicle
	results  []*vehicle.Record

	fpsBits        atomic.Uint64
	framesIngested atomic.Int64
	framesDropped  atomic.Int64
	tasksDropped   atomic.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewStreamProcessor builds a processor; Start launches it.
func NewStreamProcessor(cfg Config, open capture.SourceOpener, svc Services, sinks []RecordSink, logger *slog.Logger) *StreamProcessor {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamProcessor{
		cfg:      cfg,
		logger:   logger.With("stream_id", cfg.StreamID),
		open:     open,
		svc:      svc,
		sinks:    sinks,
		frameQ:   NewBoundedQueue[capture.Frame](cfg.QueueCapacity),
		vehicleQ: NewBoundedQueue[vehicleTask](cfg.QueueCapacity),
		plateQ:   NewBoundedQueue[plateTask](cfg.QueueCapacity),
		displayQ: NewBoundedQueue[image.Image](cfg.DisplayCapacity),
		ctx:      ctx,
		cancel:   cancel,
		vehicles: make(map[int]*vehicle.Vehicle),
	}
}

// Start launches the ingestion loop and the three stage goroutines.
func (p *StreamProcessor) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}

	p.wg.Add(4)
	go func() { defer p.wg.Done(); p.readFrames() }()
	go func() { defer p.wg.Done(); p.trackLoop() }()
	go func() { defer p.wg.Done(); p.plateLoop() }()
	go func() { defer p.wg.Done(); p.ocrLoop() }()

	p.logger.Info("pipeline started", "source", p.cfg.SourceURL)
}

// Stop shuts the session down: clears the running flag, synchronously
// finalizes every remaining vehicle so no record is lost, closes all queues
// to wake blocked stages, and joins the goroutines with a bounded wait.
// Idempotent.
func (p *StreamProcessor) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("stopping pipeline")
		p.running.Store(false)
		p.cancel()

		p.mu.Lock()
		var flushed []finalized
		for id, v := range p.vehicles {
			delete(p.vehicles, id)
			if rec := v.Finalize(); rec != nil {
				p.appendResultLocked(rec)
				flushed = append(flushed, finalized{rec: rec, img: v.BestPlateImage()})
			}
		}
		p.mu.Unlock()
		for _, f := range flushed {
			p.persist(f)
		}

		p.frameQ.Close()
		p.vehicleQ.Close()
		p.plateQ.Close()
		p.displayQ.Close()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			p.logger.Info("pipeline stopped", "flushed_records", len(flushed))
		case <-time.After(p.cfg.JoinTimeout):
			p.logger.Warn("abandoning stage goroutines after join timeout",
				"timeout", p.cfg.JoinTimeout)
		}
	})
}

func (p *StreamProcessor) IsRunning() bool {
	return p.running.Load()
}

// DisplayFrame returns the most recent annotated preview frame without
// blocking. ok is false when none is ready.
func (p *StreamProcessor) DisplayFrame() (image.Image, bool) {
	return p.displayQ.TryGet()
}

// Results returns the recent finalized records, newest first, bounded by the
// configured history capacity.
func (p *StreamProcessor) Results() []*vehicle.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*vehicle.Record, len(p.results))
	for i, rec := range p.results {
		out[len(p.results)-1-i] = rec
	}
	return out
}

// FPS returns the throughput estimate over the last 30 processed frames.
func (p *StreamProcessor) FPS() float64 {
	return math.Float64frombits(p.fpsBits.Load())
}

func (p *StreamProcessor) Stats() Stats {
	return Stats{
		FramesIngested: p.framesIngested.Load(),
		FramesDropped:  p.framesDropped.Load(),
		TasksDropped:   p.tasksDropped.Load(),
		FPS:            p.FPS(),
	}
}

func (p *StreamProcessor) vehicleByID(id int) *vehicle.Vehicle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vehicles[id]
}

// appendResultLocked adds rec to the bounded history, evicting the oldest
// entry past capacity. Caller holds p.mu.
func (p *StreamProcessor) appendResultLocked(rec *vehicle.Record) {
	p.results = append(p.results, rec)
	if len(p.results) > p.cfg.ResultsCapacity {
		p.results = p.results[len(p.results)-p.cfg.ResultsCapacity:]
	}
}

// persist fans a finalized record out to the durable sinks. Sink failures
// are logged, never fatal: the record stays in the in-memory history.
func (p *StreamProcessor) persist(f finalized) {
	for _, sink := range p.sinks {
		if err := sink.SaveRecord(p.cfg.StreamID, f.rec); err != nil {
			p.logger.Error("failed to persist record",
				"track_id", f.rec.TrackID,
				"error", err)
		}
		if is, ok := sink.(ImageSink); ok && f.img != nil {
			if err := is.SavePlateImage(p.cfg.StreamID, f.rec, f.img); err != nil {
				p.logger.Error("failed to persist plate image",
					"track_id", f.rec.TrackID,
					"error", err)
			}
		}
	}
}
