package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/vehicle"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return rows
}

func TestResultWriter_SaveRecord(t *testing.T) {
	w, err := NewResultWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewResultWriter failed: %v", err)
	}

	ts := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	rec := &vehicle.Record{TrackID: 7, PlateText: "AB12CDE", Timestamp: ts}

	if err := w.SaveRecord("cam-1", rec); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}

	path := filepath.Join(w.baseDir, "cam-1", "2026-03-10-14", "results.csv")
	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}
	if rows[0][0] != "vehicle_id" || rows[0][2] != "plate_text" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "7" || rows[1][1] != "2026-03-10 14:30:00" || rows[1][2] != "AB12CDE" {
		t.Errorf("unexpected row: %v", rows[1])
	}
}

func TestResultWriter_HeaderWrittenOnce(t *testing.T) {
	w, err := NewResultWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewResultWriter failed: %v", err)
	}

	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		rec := &vehicle.Record{TrackID: i, PlateText: fmt.Sprintf("PL%d", i), Timestamp: ts}
		if err := w.SaveRecord("cam-1", rec); err != nil {
			t.Fatalf("SaveRecord failed: %v", err)
		}
	}

	path := filepath.Join(w.baseDir, "cam-1", "2026-03-10-14", "results.csv")
	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected header plus three rows, got %d rows", len(rows))
	}
	for i, row := range rows[1:] {
		if row[0] == "vehicle_id" {
			t.Fatalf("header repeated at data row %d", i)
		}
	}
}

func TestResultWriter_HourRollover(t *testing.T) {
	w, err := NewResultWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewResultWriter failed: %v", err)
	}

	first := &vehicle.Record{TrackID: 1, PlateText: "AAA111",
		Timestamp: time.Date(2026, 3, 10, 14, 59, 0, 0, time.UTC)}
	second := &vehicle.Record{TrackID: 2, PlateText: "BBB222",
		Timestamp: time.Date(2026, 3, 10, 15, 1, 0, 0, time.UTC)}

	if err := w.SaveRecord("cam-1", first); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}
	if err := w.SaveRecord("cam-1", second); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}

	a := readCSV(t, filepath.Join(w.baseDir, "cam-1", "2026-03-10-14", "results.csv"))
	b := readCSV(t, filepath.Join(w.baseDir, "cam-1", "2026-03-10-15", "results.csv"))
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("expected one record per hour directory, got %d and %d rows", len(a), len(b))
	}
	if a[1][2] != "AAA111" || b[1][2] != "BBB222" {
		t.Errorf("records landed in the wrong hour: %v %v", a[1], b[1])
	}
}

func TestResultWriter_SeparateStreams(t *testing.T) {
	w, err := NewResultWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewResultWriter failed: %v", err)
	}

	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if err := w.SaveRecord("cam-1", &vehicle.Record{TrackID: 1, PlateText: "AAA111", Timestamp: ts}); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}
	if err := w.SaveRecord("cam-2", &vehicle.Record{TrackID: 2, PlateText: "BBB222", Timestamp: ts}); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}

	a := readCSV(t, filepath.Join(w.baseDir, "cam-1", "2026-03-10-14", "results.csv"))
	b := readCSV(t, filepath.Join(w.baseDir, "cam-2", "2026-03-10-14", "results.csv"))
	if a[1][2] != "AAA111" || b[1][2] != "BBB222" {
		t.Errorf("streams shared a results file: %v %v", a[1], b[1])
	}
}

func TestResultWriter_ConcurrentSaves(t *testing.T) {
	w, err := NewResultWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewResultWriter failed: %v", err)
	}

	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := &vehicle.Record{TrackID: i, PlateText: fmt.Sprintf("PL%02d", i), Timestamp: ts}
			if err := w.SaveRecord("cam-1", rec); err != nil {
				t.Errorf("SaveRecord failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	rows := readCSV(t, filepath.Join(w.baseDir, "cam-1", "2026-03-10-14", "results.csv"))
	if len(rows) != n+1 {
		t.Fatalf("expected %d rows plus header, got %d", n, len(rows))
	}
}
