// Package ledger provides the SQLite-backed stroke store and the persistent
// stroke-to-block association that keeps re-recognition incremental: a
// stroke with a block reference has already been recognized and is never
// sent to the recognition service again.
package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS strokes (
	id          TEXT PRIMARY KEY,
	book        INTEGER NOT NULL,
	page        INTEGER NOT NULL,
	samples     TEXT NOT NULL DEFAULT '[]',
	block_ref   TEXT NOT NULL DEFAULT '',
	captured_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_strokes_page ON strokes(book, page);
CREATE INDEX IF NOT EXISTS idx_strokes_block ON strokes(block_ref);

CREATE TABLE IF NOT EXISTS imports (
	checksum    TEXT PRIMARY KEY,
	filename    TEXT NOT NULL DEFAULT '',
	imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with ledger-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
