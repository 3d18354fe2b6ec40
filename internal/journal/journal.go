// Package journal records invocation outcomes in a local SQLite
// database. The journal is write-only telemetry for the status and
// serve commands; the pipeline itself never reads it, so no decision
// state leaks between invocations.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run outcomes.
const (
	OutcomePosted   = "posted"
	OutcomeNoAction = "no-action"
	OutcomeFailed   = "failed"
)

// DB wraps the SQLite journal.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the journal database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			post_id INTEGER,
			scheduled_at TEXT
		)`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Run is one recorded invocation.
type Run struct {
	ID          int64
	StartedAt   time.Time
	Outcome     string
	Message     string
	PostID      *int
	ScheduledAt *time.Time
}

// Record inserts one invocation outcome.
func (db *DB) Record(r Run) error {
	var postID any
	if r.PostID != nil {
		postID = *r.PostID
	}
	var scheduledAt any
	if r.ScheduledAt != nil {
		scheduledAt = r.ScheduledAt.Format(time.RFC3339)
	}
	_, err := db.conn.Exec(
		"INSERT INTO runs (started_at, outcome, message, post_id, scheduled_at) VALUES (?, ?, ?, ?, ?)",
		r.StartedAt.Format(time.RFC3339), r.Outcome, r.Message, postID, scheduledAt,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (db *DB) Recent(limit int) ([]Run, error) {
	rows, err := db.conn.Query(
		"SELECT id, started_at, outcome, message, post_id, scheduled_at FROM runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var postID sql.NullInt64
		var scheduled sql.NullString
		if err := rows.Scan(&r.ID, &started, &r.Outcome, &r.Message, &postID, &scheduled); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		if postID.Valid {
			id := int(postID.Int64)
			r.PostID = &id
		}
		if scheduled.Valid {
			if t, err := time.Parse(time.RFC3339, scheduled.String); err == nil {
				r.ScheduledAt = &t
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats summarizes the journal for the status command.
type Stats struct {
	TotalRuns int
	Posted    int
	NoAction  int
	Failed    int
	LastRun   *Run
}

// GetStats aggregates run counts by outcome.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	rows, err := db.conn.Query("SELECT outcome, COUNT(*) FROM runs GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		s.TotalRuns += count
		switch outcome {
		case OutcomePosted:
			s.Posted = count
		case OutcomeNoAction:
			s.NoAction = count
		case OutcomeFailed:
			s.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := db.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(recent) > 0 {
		s.LastRun = &recent[0]
	}
	return s, nil
}
