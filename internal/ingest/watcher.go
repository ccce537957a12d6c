package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// PagesCallback is called after capture files are ingested, with the set
// of pages that gained strokes.
type PagesCallback func(pages map[models.PageID]struct{})

// Watch starts an fsnotify watcher on the capture inbox and imports
// dropped export files until ctx is cancelled. Writes are debounced per
// settle interval because the companion app streams exports in chunks; the
// importer's checksum dedupe makes re-processing a settled file harmless.
func Watch(ctx context.Context, im *Importer, dir string, logger *slog.Logger, cb PagesCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("inbox", dir))

	const settle = 500 * time.Millisecond
	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func(path string) {
		pending[path] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			pages := make(map[models.PageID]struct{})
			for path := range pending {
				delete(pending, path)
				filePages, err := im.ImportFile(path)
				if err != nil {
					logger.Warn("watcher: import failed",
						slog.String("file", filepath.Base(path)),
						slog.String("error", err.Error()))
					continue
				}
				for p := range filePages {
					pages[p] = struct{}{}
				}
			}
			if len(pages) > 0 && cb != nil {
				cb(pages)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule(ev.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
