package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/secret-sahil/vehicle-plate-detection-ai/internal/vehicle"
)

// PlateRecord is the archived form of a finalized vehicle record.
type PlateRecord struct {
	ID              string    `json:"id"`
	StreamID        string    `json:"stream_id"`
	TrackID         int       `json:"track_id"`
	PlateText       string    `json:"plate_text"`
	PlateSanitized  string    `json:"plate_sanitized"`
	OCRConfidence   float64   `json:"ocr_confidence"`
	PlateConfidence float64   `json:"plate_confidence"`
	FinalizedAt     time.Time `json:"finalized_at"`
}

type RecordRepository struct {
	db *DB
}

func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) InsertRecord(rec *PlateRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
	INSERT INTO plate_records
		(id, stream_id, track_id, plate_text, plate_sanitized,
		 ocr_confidence, plate_confidence, finalized_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.Exec(query,
		rec.ID, rec.StreamID, rec.TrackID, rec.PlateText, rec.PlateSanitized,
		rec.OCRConfidence, rec.PlateConfidence, rec.FinalizedAt)
	if err != nil {
		return fmt.Errorf("failed to insert plate record: %w", err)
	}
	return nil
}

// RecentByStream returns the most recently finalized records for a stream,
// newest first.
func (r *RecordRepository) RecentByStream(streamID string, limit int) ([]*PlateRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, stream_id, track_id, plate_text, plate_sanitized,
	       ocr_confidence, plate_confidence, finalized_at
	FROM plate_records
	WHERE stream_id = ?
	ORDER BY finalized_at DESC
	LIMIT ?`

	rows, err := r.db.conn.Query(query, streamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plate records: %w", err)
	}
	defer rows.Close()

	var records []*PlateRecord
	for rows.Next() {
		var rec PlateRecord
		if err := rows.Scan(&rec.ID, &rec.StreamID, &rec.TrackID,
			&rec.PlateText, &rec.PlateSanitized,
			&rec.OCRConfidence, &rec.PlateConfidence, &rec.FinalizedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plate record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// SaveRecord adapts the repository to the pipeline's record sink interface.
func (r *RecordRepository) SaveRecord(streamID string, rec *vehicle.Record) error {
	return r.InsertRecord(&PlateRecord{
		StreamID:        streamID,
		TrackID:         rec.TrackID,
		PlateText:       rec.PlateText,
		PlateSanitized:  vehicle.SanitizePlate(rec.PlateText),
		OCRConfidence:   rec.OCRConfidence,
		PlateConfidence: rec.PlateConfidence,
		FinalizedAt:     rec.Timestamp,
	})
}
