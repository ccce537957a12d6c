package ledger

import "github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"

// Store defines the ledger operations the rest of the bridge depends on.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type Store interface {
	InsertStrokes(strokes []models.Stroke) error
	StrokesForPage(page models.PageID) ([]models.Stroke, error)
	Unrecognized(page models.PageID) ([]models.Stroke, error)
	Assign(strokeIDs []string, blockID string) error
	Pages() ([]models.PageID, error)
	HasImport(checksum string) (bool, error)
	RecordImport(checksum, filename string) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
