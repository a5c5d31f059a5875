package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/capture"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/imaging"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/vehicle"
)

// readFrames is the ingestion loop. It opens the source, reads frames as
// fast as the source delivers them, applies decimation and forwards the
// survivors with a short timeout — a saturated tracker stage costs dropped
// frames, never a stalled source. A read failure triggers exactly one reopen
// after a fixed backoff; a second failure stops the session.
func (p *StreamProcessor) readFrames() {
	src, err := p.open(p.cfg.SourceURL)
	if err != nil {
		p.logger.Error("could not open source", "source", p.cfg.SourceURL, "error", err)
		p.running.Store(false)
		return
	}
	defer func() {
		if src != nil {
			src.Close()
		}
	}()

	var frameNum int64
	for p.running.Load() {
		img, err := src.Read()
		if err != nil {
			p.logger.Warn("source read failed, reconnecting",
				"error", err,
				"backoff", p.cfg.ReconnectBackoff)
			src.Close()
			src = nil
			time.Sleep(p.cfg.ReconnectBackoff)
			src, err = p.open(p.cfg.SourceURL)
			if err != nil {
				p.logger.Error("reconnect failed, stopping session", "error", err)
				p.running.Store(false)
				return
			}
			continue
		}

		frameNum++
		if frameNum%int64(p.cfg.SkipFrames) != 0 {
			continue
		}
		p.framesIngested.Add(1)

		frame := capture.Frame{
			Image:     img,
			Index:     frameNum,
			Timestamp: time.Now(),
		}
		if err := p.frameQ.Put(frame, p.cfg.StageTimeout); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			p.framesDropped.Add(1)
		}
	}
}

// trackLoop consumes frames, runs the vehicle tracker and drives the vehicle
// lifecycle: track ids that vanished since the previous frame are finalized
// and removed, new ids get a fresh Vehicle, and every visible vehicle is
// forwarded to the plate stage. It also maintains the throughput estimate
// and publishes the annotated preview frame, latest wins.
func (p *StreamProcessor) trackLoop() {
	var windowCount int
	windowStart := time.Now()

	for p.running.Load() {
		frame, err := p.frameQ.Get(p.cfg.StageTimeout)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			continue
		}

		boxes, err := p.svc.Tracker.Track(p.ctx, frame.Image)
		if err != nil {
			// A tracker failure is not an empty scene: skip the
			// frame so visible vehicles are not finalized early.
			p.logger.Warn("tracker failed, skipping frame", "error", err)
			continue
		}

		current := make(map[int]struct{}, len(boxes))
		for _, tb := range boxes {
			current[tb.TrackID] = struct{}{}
		}

		p.mu.Lock()
		var done []finalized
		for id, v := range p.vehicles {
			if _, visible := current[id]; visible {
				continue
			}
			delete(p.vehicles, id)
			if rec := v.Finalize(); rec != nil {
				p.appendResultLocked(rec)
				done = append(done, finalized{rec: rec, img: v.BestPlateImage()})
			}
		}
		for _, tb := range boxes {
			if _, exists := p.vehicles[tb.TrackID]; !exists {
				p.logger.Info("new vehicle detected", "track_id", tb.TrackID)
				p.vehicles[tb.TrackID] = vehicle.New(tb.TrackID, p.cfg.StreamID, p.logger)
			}
		}
		p.mu.Unlock()

		for _, f := range done {
			p.persist(f)
		}

		for _, tb := range boxes {
			task := vehicleTask{Frame: frame, TrackID: tb.TrackID, Box: tb.Box}
			if err := p.vehicleQ.Put(task, p.cfg.StageTimeout); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				p.tasksDropped.Add(1)
			}
		}

		windowCount++
		if windowCount >= fpsWindow {
			elapsed := time.Since(windowStart).Seconds()
			if elapsed > 0 {
				p.fpsBits.Store(math.Float64bits(float64(windowCount) / elapsed))
			}
			windowStart = time.Now()
			windowCount = 0
		}

		annotations := make([]imaging.Annotation, 0, len(boxes))
		for _, tb := range boxes {
			annotations = append(annotations, imaging.Annotation{
				Rect:  tb.Box.Rect(),
				Label: fmt.Sprintf("ID: %d", tb.TrackID),
			})
		}
		caption := fmt.Sprintf("FPS: %.2f", p.FPS())
		p.displayQ.PutLatest(imaging.Annotate(frame.Image, annotations, caption))
	}
}

// plateLoop consumes (frame, track id, vehicle box) tasks, crops the vehicle
// and runs the plate sub-detector on the crop. A vehicle that was finalized
// while the task sat in the queue is a normal race, discarded silently.
func (p *StreamProcessor) plateLoop() {
	for p.running.Load() {
		task, err := p.vehicleQ.Get(p.cfg.StageTimeout)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			continue
		}

		v := p.vehicleByID(task.TrackID)
		if v == nil {
			continue
		}

		vehicleCrop := imaging.Crop(task.Frame.Image, task.Box.Rect())
		if vehicleCrop == nil {
			continue
		}

		detections, err := p.svc.Plates.Detect(p.ctx, vehicleCrop)
		if err != nil {
			p.logger.Warn("plate detector failed", "track_id", task.TrackID, "error", err)
			detections = nil
		}

		if len(detections) == 0 {
			// No plate this frame; the observation count still
			// advances.
			v.Update(vehicle.Observation{VehicleImg: vehicleCrop})
			continue
		}

		for _, d := range detections {
			plateCrop := imaging.Crop(vehicleCrop, d.Box.Rect())
			if plateCrop == nil {
				continue
			}
			next := plateTask{
				TrackID:     task.TrackID,
				VehicleCrop: vehicleCrop,
				PlateCrop:   plateCrop,
				Box:         d.Box,
				Confidence:  d.Confidence,
			}
			if err := p.plateQ.Put(next, p.cfg.StageTimeout); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				p.tasksDropped.Add(1)
			}
		}
	}
}

// ocrLoop consumes plate crops, reads the text and feeds the result into the
// vehicle's quality selection. A reader failure counts as an empty read so
// the observation bookkeeping still advances.
func (p *StreamProcessor) ocrLoop() {
	for p.running.Load() {
		task, err := p.plateQ.Get(p.cfg.StageTimeout)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			continue
		}

		v := p.vehicleByID(task.TrackID)
		if v == nil {
			continue
		}

		text, confidence, err := p.svc.Reader.Read(p.ctx, task.PlateCrop)
		if err != nil {
			p.logger.Warn("plate reader failed", "track_id", task.TrackID, "error", err)
			text, confidence = "", 0
		}

		v.Update(vehicle.Observation{
			VehicleImg:      task.VehicleCrop,
			PlateImg:        task.PlateCrop,
			PlateBox:        task.Box,
			PlateConfidence: task.Confidence,
			Text:            text,
			TextConfidence:  confidence,
		})
	}
}
