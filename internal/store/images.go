package store

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/imaging"
	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/vehicle"
)

// SavePlateImage archives the best plate crop next to the CSV, named after
// the sanitised plate so the file is findable without opening the CSV.
func (w *ResultWriter) SavePlateImage(streamID string, rec *vehicle.Record, img image.Image) error {
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return fmt.Errorf("failed to encode plate image: %w", err)
	}

	dir := filepath.Join(w.baseDir, streamID, rec.Timestamp.Format("2006-01-02-15"))

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	name := fmt.Sprintf("%s_%d.jpg", vehicle.SanitizePlate(rec.PlateText), rec.TrackID)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write plate image: %w", err)
	}
	return nil
}
