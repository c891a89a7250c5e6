// Package store persists session metadata in SQLite. The tmux server
// is always the source of truth for which sessions are alive; the
// store only carries the metadata a window name cannot (resolved
// host, user, port, timestamps) across process restarts.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// DB wraps a SQLite database for session metadata. Thread-safe within
// one process; WAL mode + busy timeout make cross-process access safe.
type DB struct {
	db *sql.DB
}

// SessionRow is one recorded session.
type SessionRow struct {
	ID        string
	Host      string
	User      string
	Port      int
	CreatedAt time.Time
	ClosedAt  time.Time // zero while the session is open
}

// Open creates or opens the database at dbPath.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// WAL mode: allows concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal mode: %w", err)
	}

	// Busy timeout: wait up to 5s if another process holds a lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: busy timeout: %w", err)
	}

	return &DB{db: db}, nil
}

// Migrate creates or upgrades the schema.
func (d *DB) Migrate() error {
	if _, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	var version int
	err := d.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := d.db.Exec("INSERT INTO schema_version (version) VALUES (0)"); err != nil {
			return fmt.Errorf("store: init schema_version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("store: read schema_version: %w", err)
	}

	if version < 1 {
		if _, err := d.db.Exec(`
			CREATE TABLE IF NOT EXISTS sessions (
				id         TEXT PRIMARY KEY,
				host       TEXT NOT NULL,
				user       TEXT NOT NULL DEFAULT '',
				port       INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				closed_at  INTEGER NOT NULL DEFAULT 0
			)`); err != nil {
			return fmt.Errorf("store: create sessions: %w", err)
		}
	}

	if version != SchemaVersion {
		if _, err := d.db.Exec("UPDATE schema_version SET version = ?", SchemaVersion); err != nil {
			return fmt.Errorf("store: bump schema_version: %w", err)
		}
	}
	return nil
}

// Close checkpoints WAL and closes the database.
func (d *DB) Close() error {
	_, _ = d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return d.db.Close()
}

// SaveSession records a newly opened session. An existing row with the
// same id is replaced; ids are never reused while a session is open,
// so a collision means a stale row from a dead process.
func (d *DB) SaveSession(row SessionRow) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO sessions (id, host, user, port, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, 0)`,
		row.ID, row.Host, row.User, row.Port, row.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

// MarkClosed stamps a session's close time. Unknown ids are a no-op.
func (d *DB) MarkClosed(id string) error {
	_, err := d.db.Exec("UPDATE sessions SET closed_at = ? WHERE id = ? AND closed_at = 0",
		time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: mark closed: %w", err)
	}
	return nil
}

// Get returns the row for id, or ok=false when absent.
func (d *DB) Get(id string) (SessionRow, bool, error) {
	var row SessionRow
	var created, closed int64
	err := d.db.QueryRow(`
		SELECT id, host, user, port, created_at, closed_at
		FROM sessions WHERE id = ?`, id).
		Scan(&row.ID, &row.Host, &row.User, &row.Port, &created, &closed)
	if err == sql.ErrNoRows {
		return SessionRow{}, false, nil
	}
	if err != nil {
		return SessionRow{}, false, fmt.Errorf("store: get session: %w", err)
	}
	row.CreatedAt = time.Unix(created, 0)
	if closed > 0 {
		row.ClosedAt = time.Unix(closed, 0)
	}
	return row, true, nil
}

// ListOpen returns all rows without a close stamp, oldest first.
func (d *DB) ListOpen() ([]SessionRow, error) {
	rows, err := d.db.Query(`
		SELECT id, host, user, port, created_at, closed_at
		FROM sessions WHERE closed_at = 0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: list open: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var row SessionRow
		var created, closed int64
		if err := rows.Scan(&row.ID, &row.Host, &row.User, &row.Port, &created, &closed); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		row.CreatedAt = time.Unix(created, 0)
		out = append(out, row)
	}
	return out, rows.Err()
}
