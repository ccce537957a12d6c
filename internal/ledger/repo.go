package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// InsertStrokes stores captured strokes within a transaction. Stroke ids
// are stable capture timestamps, so re-importing the same capture file is a
// no-op rather than a duplicate.
func (db *DB) InsertStrokes(strokes []models.Stroke) error {
	if len(strokes) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO strokes (id, book, page, samples, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("ledger: prepare stroke insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range strokes {
		samplesJSON, err := json.Marshal(s.Samples)
		if err != nil {
			return fmt.Errorf("ledger: marshal samples for %s: %w", s.ID, err)
		}
		if _, err := stmt.Exec(s.ID, s.Page.Book, s.Page.Page, string(samplesJSON), s.CapturedAt); err != nil {
			return fmt.Errorf("ledger: insert stroke %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

// StrokesForPage returns every stroke captured on the page, recognized or
// not, ordered by capture time.
func (db *DB) StrokesForPage(page models.PageID) ([]models.Stroke, error) {
	return db.queryStrokes(`
		SELECT id, book, page, samples, block_ref, captured_at
		FROM strokes WHERE book = ? AND page = ?
		ORDER BY captured_at
	`, page.Book, page.Page)
}

// Unrecognized returns only the page's strokes with no block reference.
// This is the set sent to the recognition service; already-recognized
// strokes are excluded by construction.
func (db *DB) Unrecognized(page models.PageID) ([]models.Stroke, error) {
	return db.queryStrokes(`
		SELECT id, book, page, samples, block_ref, captured_at
		FROM strokes WHERE book = ? AND page = ? AND block_ref = ''
		ORDER BY captured_at
	`, page.Book, page.Page)
}

// Assign records the block each stroke was recognized into. Callers invoke
// this exactly once per applied action, only after the note database
// confirmed the write; a crash before Assign leaves the strokes unassigned
// and therefore retried on the next pass.
func (db *DB) Assign(strokeIDs []string, blockID string) error {
	if len(strokeIDs) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`UPDATE strokes SET block_ref = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("ledger: prepare assign: %w", err)
	}
	defer stmt.Close()

	for _, id := range strokeIDs {
		if _, err := stmt.Exec(blockID, id); err != nil {
			return fmt.Errorf("ledger: assign stroke %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Pages returns every page with at least one stored stroke.
func (db *DB) Pages() ([]models.PageID, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT book, page FROM strokes ORDER BY book, page`)
	if err != nil {
		return nil, fmt.Errorf("ledger: pages: %w", err)
	}
	defer rows.Close()

	var out []models.PageID
	for rows.Next() {
		var p models.PageID
		if err := rows.Scan(&p.Book, &p.Page); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HasImport reports whether a capture file with this checksum was already
// ingested.
func (db *DB) HasImport(checksum string) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM imports WHERE checksum = ?`, checksum).Scan(&one)
	if err != nil {
		return false, nil // not found is fine
	}
	return true, nil
}

// RecordImport marks a capture file as ingested.
func (db *DB) RecordImport(checksum, filename string) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO imports (checksum, filename, imported_at) VALUES (?, ?, ?)
	`, checksum, filename, time.Now())
	if err != nil {
		return fmt.Errorf("ledger: record import: %w", err)
	}
	return nil
}

func (db *DB) queryStrokes(query string, args ...any) ([]models.Stroke, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query strokes: %w", err)
	}
	defer rows.Close()

	var out []models.Stroke
	for rows.Next() {
		var s models.Stroke
		var samplesJSON string
		if err := rows.Scan(&s.ID, &s.Page.Book, &s.Page.Page, &samplesJSON, &s.BlockRef, &s.CapturedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(samplesJSON), &s.Samples); err != nil {
			return nil, fmt.Errorf("ledger: unmarshal samples for %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
