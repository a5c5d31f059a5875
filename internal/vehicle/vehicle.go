// Package vehicle holds the per-track accumulator that keeps the best
// observed plate image and plate text for one tracked vehicle, and emits a
// single record when the vehicle leaves the scene.
package vehicle

import (
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/detect"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/imaging"
)

const (
	// Normalisation caps for the plate quality score. A plate box of
	// 30000 px² or a Laplacian variance of 2000 saturates its term.
	areaNorm  = 30000.0
	sharpNorm = 2000.0

	// PlaceholderPlate replaces a plate whose sanitised form is empty.
	PlaceholderPlate = "UNKNOWN_PLATE"
)

// Record is the final, immutable result for one tracked vehicle.
type Record struct {
	TrackID         int       `json:"track_id"`
	PlateText       string    `json:"plate_text"`
	OCRConfidence   float64   `json:"ocr_confidence"`
	PlateConfidence float64   `json:"plate_confidence"`
	Timestamp       time.Time `json:"timestamp"`
}

// Observation carries one pipeline update for a vehicle. PlateImg nil means
// no plate was found this frame; the update still advances bookkeeping.
type Observation struct {
	VehicleImg      image.Image
	PlateImg        image.Image
	PlateBox        detect.Box
	PlateConfidence float64
	Text            string
	TextConfidence  float64
}

// Vehicle accumulates the best plate and text seen for one track id. It is
// created when the tracker first reports the id and finalized exactly once
// when the id disappears or the session stops.
type Vehicle struct {
	TrackID  int
	StreamID string

	mu         sync.Mutex
	createdAt  time.Time
	lastSeen   time.Time
	frameCount int

	bestVehicleImg image.Image
	bestPlateImg   image.Image
	bestPlateConf  float64
	bestPlateArea  int
	bestPlateSharp float64

	bestText     string
	bestTextConf float64

	finalized bool
	logger    *slog.Logger
}

func New(trackID int, streamID string, logger *slog.Logger) *Vehicle {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Vehicle{
		TrackID:   trackID,
		StreamID:  streamID,
		createdAt: now,
		lastSeen:  now,
		logger:    logger,
	}
}

// plateScore weighs detection confidence, box area and crop sharpness.
// Area and sharpness are clamped so a huge blurry box cannot dominate.
func plateScore(confidence float64, area int, sharpness float64) float64 {
	normArea := float64(area) / areaNorm
	if normArea > 1 {
		normArea = 1
	}
	normSharp := sharpness / sharpNorm
	if normSharp > 1 {
		normSharp = 1
	}
	return 0.5*confidence + 0.25*normArea + 0.25*normSharp
}

// textScore weighs read confidence, length and whether the text is purely
// alphanumeric (plates never contain punctuation; its presence means noise).
func textScore(text string, confidence float64) float64 {
	score := 0.7*confidence + 0.1*float64(len(text))
	if isAlphanumeric(text) {
		score += 0.2
	}
	return score
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// Update applies one observation, keeping only the best-quality plate image
// and text. Scores only ever increase over the vehicle's lifetime; ties keep
// the incumbent. Updates after finalization are ignored.
func (v *Vehicle) Update(obs Observation) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.finalized {
		return
	}

	v.frameCount++
	v.lastSeen = time.Now()

	if obs.PlateImg != nil {
		area := obs.PlateBox.Area()
		sharpness := imaging.Sharpness(obs.PlateImg)
		score := plateScore(obs.PlateConfidence, area, sharpness)
		if v.bestPlateImg == nil || score > plateScore(v.bestPlateConf, v.bestPlateArea, v.bestPlateSharp) {
			v.logger.Info("new best plate",
				"track_id", v.TrackID,
				"confidence", obs.PlateConfidence,
				"sharpness", sharpness,
				"area", area)
			v.bestPlateImg = obs.PlateImg
			v.bestVehicleImg = obs.VehicleImg
			v.bestPlateConf = obs.PlateConfidence
			v.bestPlateArea = area
			v.bestPlateSharp = sharpness
		}
	}

	if text := strings.TrimSpace(obs.Text); text != "" {
		if v.bestText == "" || textScore(text, obs.TextConfidence) > textScore(v.bestText, v.bestTextConf) {
			v.logger.Info("new best plate text",
				"track_id", v.TrackID,
				"text", text,
				"confidence", obs.TextConfidence)
			v.bestText = text
			v.bestTextConf = obs.TextConfidence
		}
	}
}

// Finalize closes out the vehicle's lifecycle. The first call returns a
// Record when both a best text and a best plate image exist, or nil when the
// evidence is insufficient. Every later call returns nil.
func (v *Vehicle) Finalize() *Record {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.finalized {
		return nil
	}
	v.finalized = true

	if v.bestText == "" || v.bestPlateImg == nil {
		v.logger.Info("vehicle discarded, not enough quality data",
			"track_id", v.TrackID,
			"observations", v.frameCount)
		return nil
	}

	return &Record{
		TrackID:         v.TrackID,
		PlateText:       v.bestText,
		OCRConfidence:   v.bestTextConf,
		PlateConfidence: v.bestPlateConf,
		Timestamp:       v.lastSeen,
	}
}

// BestPlateImage returns the current best plate crop, or nil.
func (v *Vehicle) BestPlateImage() image.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bestPlateImg
}

// SanitizePlate reduces plate text to an uppercase alphanumeric token for
// filesystem-facing identifiers. An empty result becomes PlaceholderPlate.
func SanitizePlate(text string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(text) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return PlaceholderPlate
	}
	return b.String()
}
