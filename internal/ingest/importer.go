package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/checksum"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/ledger"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// Importer reads capture files into the ledger, deduplicating by file
// checksum so a re-dropped export is not re-imported.
type Importer struct {
	ledger ledger.Store
	logger *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(ldg ledger.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{ledger: ldg, logger: logger}
}

// ImportFile ingests one capture file and returns the set of pages whose
// stroke sets changed. An already-imported file returns no pages and no
// error.
func (im *Importer) ImportFile(path string) (map[models.PageID]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	cs := checksum.Sum(data)
	seen, err := im.ledger.HasImport(cs)
	if err != nil {
		return nil, err
	}
	if seen {
		im.logger.Debug("ingest: already imported", slog.String("file", filepath.Base(path)))
		return nil, nil
	}

	strokes, err := ParseCapture(data)
	if err != nil {
		return nil, err
	}
	if err := im.ledger.InsertStrokes(strokes); err != nil {
		return nil, err
	}
	if err := im.ledger.RecordImport(cs, filepath.Base(path)); err != nil {
		return nil, err
	}

	pages := make(map[models.PageID]struct{})
	for _, s := range strokes {
		pages[s.Page] = struct{}{}
	}
	im.logger.Info("ingest: imported capture",
		slog.String("file", filepath.Base(path)),
		slog.Int("strokes", len(strokes)),
		slog.Int("pages", len(pages)))
	return pages, nil
}

// ImportDir ingests every capture file already present in the inbox. Run
// once at startup so files dropped while the bridge was down are not lost.
func (im *Importer) ImportDir(dir string) (map[models.PageID]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read dir %s: %w", dir, err)
	}

	pages := make(map[models.PageID]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		filePages, err := im.ImportFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			im.logger.Warn("ingest: import failed",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()))
			continue
		}
		for p := range filePages {
			pages[p] = struct{}{}
		}
	}
	return pages, nil
}
