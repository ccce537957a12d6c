// Package testutil provides shared test helpers for setting up ledgers and
// capture directories.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/ledger"
)

// TestLedger creates a temporary SQLite ledger that is automatically
// cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "penbridge-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Logger returns a logger that discards output, for components that
// require one.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
