// Package history records the outcome of every file handled by a sync cycle
// in a small SQLite database next to the agent's settings.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the history database inside the agent's plugin folder.
const FileName = "history.db"

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS updates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id TEXT NOT NULL,
    path TEXT NOT NULL,
    filename TEXT DEFAULT '',
    plugin_id TEXT DEFAULT '',
    destination TEXT DEFAULT '',
    bytes INTEGER DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT DEFAULT '',
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_updates_cycle ON updates(cycle_id);
`

// Status values for an Entry.
const (
	StatusWritten = "written"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Entry is one row of the updates table.
type Entry struct {
	ID          int64     `json:"id"`
	CycleID     string    `json:"cycle_id"`
	Path        string    `json:"path"`
	Filename    string    `json:"filename,omitempty"`
	PluginID    string    `json:"plugin_id,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Bytes       int       `json:"bytes"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// DB wraps the history database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	db := &DB{conn: conn, path: dbPath}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the database connection.
func (db *DB) Close() error {
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_info: %w", err)
	}

	var raw string
	err := db.conn.QueryRow(`SELECT value FROM schema_info WHERE key = 'version'`).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("get schema version: %w", err)
	}
	current, _ := strconv.Atoi(raw)
	if current >= SchemaVersion {
		return nil
	}

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	_, err = db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`, strconv.Itoa(SchemaVersion))
	return err
}

// Record batch-inserts the entries of one cycle in a single transaction.
// Returns nil if entries is empty.
func (db *DB) Record(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO updates (cycle_id, path, filename, plugin_id, destination, bytes, status, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.Exec(e.CycleID, e.Path, e.Filename, e.PluginID, e.Destination, e.Bytes, e.Status, e.Error, ts.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Tail returns the last N entries in chronological order (oldest first).
func (db *DB) Tail(limit int) ([]Entry, error) {
	rows, err := db.conn.Query(`
		SELECT id, cycle_id, path, COALESCE(filename, ''), COALESCE(plugin_id, ''),
		       COALESCE(destination, ''), COALESCE(bytes, 0), status, COALESCE(error, ''), timestamp
		FROM updates
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &e.CycleID, &e.Path, &e.Filename, &e.PluginID, &e.Destination, &e.Bytes, &e.Status, &e.Error, &ts); err != nil {
			return nil, err
		}
		if parsed, err := parseTimestamp(ts); err == nil {
			e.Timestamp = parsed
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Clear deletes all recorded entries and returns how many were removed.
func (db *DB) Clear() (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM updates`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// parseTimestamp tries common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339Nano, Value: s}
}
