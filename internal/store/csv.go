// Package store appends finalized plate records to per-session,
// per-hour CSV files.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/vehicle"
)

var csvHeader = []string{"vehicle_id", "timestamp", "plate_text"}

// ResultWriter appends records to
// <base>/<stream_id>/<YYYY-MM-DD-HH>/results.csv, writing the header row the
// first time a file is created. One mutex serialises writes across all
// sessions so concurrent streams cannot interleave rows in a shared file.
type ResultWriter struct {
	mu      sync.Mutex
	baseDir string
}

func NewResultWriter(baseDir string) (*ResultWriter, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &ResultWriter{baseDir: baseDir}, nil
}

func (w *ResultWriter) SaveRecord(streamID string, rec *vehicle.Record) error {
	dir := filepath.Join(w.baseDir, streamID, rec.Timestamp.Format("2006-01-02-15"))

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(dir, "results.csv")
	_, statErr := os.Stat(path)
	exists := statErr == nil

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if !exists {
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	row := []string{
		strconv.Itoa(rec.TrackID),
		rec.Timestamp.Format("2006-01-02 15:04:05"),
		rec.PlateText,
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush record: %w", err)
	}
	return nil
}
