package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS plate_records (
		id TEXT PRIMARY KEY,
		stream_id TEXT NOT NULL,
		track_id INTEGER NOT NULL,
		plate_text TEXT NOT NULL,
		plate_sanitized TEXT NOT NULL,
		ocr_confidence REAL NOT NULL,
		plate_confidence REAL NOT NULL,
		finalized_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plate_records_stream
		ON plate_records (stream_id, finalized_at);
	`

	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
