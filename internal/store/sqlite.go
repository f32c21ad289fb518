// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides contact/message/summary persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width UTC timestamp encoding. Unlike RFC3339Nano
// it never drops trailing zeros, so lexicographic order of stored values
// matches chronological order and SQL comparisons on timestamps are safe.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas ride in the DSN so they apply to every pooled connection,
	// not just the one a one-shot Exec would happen to run on. Foreign
	// key enforcement in particular must hold on all connections.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Each connection gets its own private in-memory database, so the
		// pool must never grow past the connection that holds the schema.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS contacts (
			id           TEXT PRIMARY KEY,
			handle       TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			last_seen    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_contacts_handle ON contacts(handle);

		CREATE TABLE IF NOT EXISTS messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			contact_id TEXT NOT NULL REFERENCES contacts(id),
			sender     TEXT NOT NULL,
			kind       TEXT NOT NULL,
			content    TEXT NOT NULL,
			timestamp  TEXT NOT NULL,

			CHECK (sender IN ('agent', 'client', 'human'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_contact_ts
			ON messages(contact_id, timestamp, id);

		CREATE TABLE IF NOT EXISTS conversations (
			contact_id   TEXT PRIMARY KEY REFERENCES contacts(id),
			intervening  INTEGER NOT NULL DEFAULT 0,
			last_updated TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_updated
			ON conversations(last_updated DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isForeignKeyViolation checks if the error is a SQLite FK violation
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
