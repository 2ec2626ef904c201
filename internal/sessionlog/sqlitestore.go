package sessionlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Mavwarf/metronome/internal/paths"

	_ "modernc.org/sqlite"
)

// tsLayout is fixed width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) a SQLite database at path and creates
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), paths.DirPerm); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Set PRAGMAs before any DDL.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=2000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	ddl := `
CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp  TEXT    NOT NULL,
    kind       INTEGER NOT NULL,
    bpm        REAL    NOT NULL DEFAULT 0,
    signature  TEXT    NOT NULL DEFAULT '',
    volume     REAL    NOT NULL DEFAULT 0,
    voice      TEXT    NOT NULL DEFAULT '',
    detail     TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC);
`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Open returns the store selected by kind: "sqlite" at the default data
// location, or "none".
func Open(kind string) (Store, error) {
	switch kind {
	case "", "sqlite":
		return NewSQLiteStore(filepath.Join(paths.DataDir(), paths.SessionDBName))
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown storage %q (use sqlite or none)", kind)
	}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO events (timestamp, kind, bpm, signature, volume, voice, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Time.UTC().Format(tsLayout), int(ev.Kind),
		ev.BPM, ev.Signature, ev.Volume, ev.Voice, ev.Detail,
	)
	return err
}

func (s *SQLiteStore) Events(days int) ([]Event, error) {
	query := `SELECT id, timestamp, kind, bpm, signature, volume, voice, detail FROM events`
	var args []any
	if days > 0 {
		query += ` WHERE timestamp >= ?`
		args = append(args, DayCutoff(days).UTC().Format(tsLayout))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts string
		var kind int
		if err := rows.Scan(&ev.ID, &ts, &kind, &ev.BPM, &ev.Signature, &ev.Volume, &ev.Voice, &ev.Detail); err != nil {
			return nil, err
		}
		t, err := time.Parse(tsLayout, ts)
		if err != nil {
			continue
		}
		ev.Time = t.Local()
		ev.Kind = Kind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Clean(days int) (int, error) {
	cutoff := DayCutoff(days).UTC().Format(tsLayout)
	res, err := s.db.Exec(`DELETE FROM events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM events`)
	return err
}

func (s *SQLiteStore) Path() string {
	return s.path
}
