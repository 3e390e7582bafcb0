package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// InitDB opens the SQLite database at path and creates the acquisitions table if it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Claims rely on single-writer semantics.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS acquisitions (
		id INTEGER PRIMARY KEY,
		item_id TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		failure_kind TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		final_path TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		attempted_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		locked_by TEXT
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create acquisitions table: %w", err)
	}

	return db, nil
}
