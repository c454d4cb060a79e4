package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Entry is one finished download, successful or not.
type Entry struct {
	ID        string
	URL       string
	Path      string
	Bytes     int64
	Attempts  int
	Status    string // "complete" or the error kind
	Checksum  string
	Algorithm string
	Elapsed   time.Duration
	CreatedAt time.Time
}

// Store keeps download history in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	query := `
	CREATE TABLE IF NOT EXISTS downloads (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		bytes INTEGER,
		attempts INTEGER,
		status TEXT,
		checksum TEXT,
		algorithm TEXT,
		elapsed_ms INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts one finished download.
func (s *Store) Record(e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO downloads (id, url, path, bytes, attempts, status, checksum, algorithm, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.Path, e.Bytes, e.Attempts, e.Status, e.Checksum, e.Algorithm, e.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, url, path, bytes, attempts, status, checksum, algorithm, elapsed_ms, created_at
		 FROM downloads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var elapsedMs int64
		if err := rows.Scan(&e.ID, &e.URL, &e.Path, &e.Bytes, &e.Attempts, &e.Status,
			&e.Checksum, &e.Algorithm, &elapsedMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
