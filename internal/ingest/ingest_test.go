package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/testutil"
)

const captureJSON = `{
	"device": "NeoSmartpen N2",
	"strokes": [
		{
			"book": 3, "page": 14, "startTime": 1700000001000,
			"dots": [{"x": 10, "y": 100, "pressure": 0.4}, {"x": 12, "y": 108, "pressure": 0.5}]
		},
		{
			"book": 3, "page": 14, "startTime": 1700000002000,
			"dots": [{"x": 10, "y": 150, "pressure": 0.4}]
		},
		{
			"book": 3, "page": 15, "startTime": 1700000003000,
			"dots": [{"x": 10, "y": 30, "pressure": 0.6}]
		}
	]
}`

func TestParseCapture(t *testing.T) {
	strokes, err := ParseCapture([]byte(captureJSON))
	if err != nil {
		t.Fatalf("ParseCapture: %v", err)
	}
	if len(strokes) != 3 {
		t.Fatalf("expected 3 strokes, got %d", len(strokes))
	}
	s := strokes[0]
	if s.ID != "1700000001000" {
		t.Errorf("id = %q, want capture start timestamp", s.ID)
	}
	if s.Page != (models.PageID{Book: 3, Page: 14}) {
		t.Errorf("page = %v", s.Page)
	}
	if len(s.Samples) != 2 || s.Samples[1].Y != 108 {
		t.Errorf("samples = %+v", s.Samples)
	}
	if !s.CapturedAt.Equal(time.UnixMilli(1700000001000)) {
		t.Errorf("capturedAt = %v", s.CapturedAt)
	}
}

func TestParseCaptureDropsEmptyStrokes(t *testing.T) {
	strokes, err := ParseCapture([]byte(`{"strokes": [
		{"book": 1, "page": 1, "startTime": 5, "dots": []},
		{"book": 1, "page": 1, "startTime": 6, "dots": [{"x": 1, "y": 2, "pressure": 0.1}]}
	]}`))
	if err != nil {
		t.Fatalf("ParseCapture: %v", err)
	}
	if len(strokes) != 1 || strokes[0].ID != "6" {
		t.Errorf("strokes = %+v", strokes)
	}
}

func TestParseCaptureRejectsMissingStartTime(t *testing.T) {
	_, err := ParseCapture([]byte(`{"strokes": [{"book": 1, "page": 1, "dots": [{"x": 1, "y": 2}]}]}`))
	if err == nil {
		t.Fatal("expected error for stroke without start time")
	}
}

func TestImportFile(t *testing.T) {
	db := testutil.TestLedger(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "capture-1.json")
	if err := os.WriteFile(path, []byte(captureJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	im := NewImporter(db, nil)
	pages, err := im.ImportFile(path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %v, want 2", pages)
	}
	if _, ok := pages[models.PageID{Book: 3, Page: 14}]; !ok {
		t.Errorf("page 3/14 missing from %v", pages)
	}

	strokes, err := db.StrokesForPage(models.PageID{Book: 3, Page: 14})
	if err != nil {
		t.Fatal(err)
	}
	if len(strokes) != 2 {
		t.Errorf("expected 2 strokes on page 3/14, got %d", len(strokes))
	}

	// Second import of the same file is a checksum-deduped no-op.
	pages, err = im.ImportFile(path)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("re-import returned pages %v", pages)
	}
}

func TestImportDir(t *testing.T) {
	db := testutil.TestLedger(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(captureJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("not a capture"), 0o644); err != nil {
		t.Fatal(err)
	}

	im := NewImporter(db, nil)
	pages, err := im.ImportDir(dir)
	if err != nil {
		t.Fatalf("ImportDir: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("pages = %v", pages)
	}
}

func TestWatchImportsDroppedFile(t *testing.T) {
	db := testutil.TestLedger(t)
	dir := t.TempDir()
	im := NewImporter(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan map[models.PageID]struct{}, 1)
	go func() {
		_ = Watch(ctx, im, dir, testutil.Logger(), func(pages map[models.PageID]struct{}) {
			got <- pages
		})
	}()

	// Give the watcher a moment to register before dropping the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "drop.json"), []byte(captureJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case pages := <-got:
		if _, ok := pages[models.PageID{Book: 3, Page: 15}]; !ok {
			t.Errorf("pages = %v", pages)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the dropped capture")
	}
}
