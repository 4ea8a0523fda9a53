// Package sqlite stores analysis history in a SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with serialized writers.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and migrates it.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		herb_type TEXT NOT NULL,
		grade TEXT NOT NULL,
		overall_score REAL NOT NULL DEFAULT 0,
		demo_mode INTEGER NOT NULL DEFAULT 0,
		analyzed_at DATETIME NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS analysis_defects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_id TEXT NOT NULL,
		defect TEXT NOT NULL,
		FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_herb_type ON analyses(herb_type);
	CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses(analyzed_at);
	CREATE INDEX IF NOT EXISTS idx_analysis_defects_analysis_id ON analysis_defects(analysis_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
