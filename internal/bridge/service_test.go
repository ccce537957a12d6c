package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/geometry"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/logseq"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/reconcile"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/recognizer"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/testutil"
)

// fakeRecog returns canned lines and counts how many strokes it was sent.
type fakeRecog struct {
	lines       []recognizer.Line
	err         error
	calls       int
	strokesSeen int
}

func (f *fakeRecog) Recognize(_ context.Context, _ models.PageID, strokes []models.Stroke) ([]recognizer.Line, error) {
	f.calls++
	f.strokesSeen += len(strokes)
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

// fakeNotes is a minimal in-memory note database.
type fakeNotes struct {
	blocks []models.Block
	nextID int
}

var _ logseq.Store = (*fakeNotes)(nil)

func (f *fakeNotes) ContainerBlocks(context.Context, models.PageID) (string, []models.Block, error) {
	out := make([]models.Block, len(f.blocks))
	copy(out, f.blocks)
	return "container", out, nil
}

func (f *fakeNotes) InsertBlock(_ context.Context, _, text string) (string, error) {
	f.nextID++
	id := fmt.Sprintf("b-%d", f.nextID)
	f.blocks = append(f.blocks, models.Block{ID: id, Text: text, Props: models.BlockProps{MergedLines: 1}})
	return id, nil
}

func (f *fakeNotes) UpdateBlockText(_ context.Context, blockID, text string) error {
	for i := range f.blocks {
		if f.blocks[i].ID == blockID {
			f.blocks[i].Text = text
			return nil
		}
	}
	return errors.New("no such block")
}

func (f *fakeNotes) UpsertProperty(_ context.Context, blockID, key, value string) error {
	for i := range f.blocks {
		if f.blocks[i].ID != blockID {
			continue
		}
		switch key {
		case logseq.PropCanonical:
			f.blocks[i].Props.Canonical = value
		case logseq.PropYBounds:
			r, err := geometry.ParseRange(value)
			if err != nil {
				return err
			}
			f.blocks[i].Props.YBounds = r
		}
		return nil
	}
	return errors.New("no such block")
}

func seedStrokes(t *testing.T, db interface {
	InsertStrokes([]models.Stroke) error
}, page models.PageID) {
	t.Helper()
	err := db.InsertStrokes([]models.Stroke{
		{
			ID:   "s1",
			Page: page,
			Samples: []geometry.Sample{
				{X: 10, Y: 100, Pressure: 0.4},
				{X: 60, Y: 120, Pressure: 0.5},
			},
			CapturedAt: time.Now(),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func wordLine(text string, minY, height float64) recognizer.Line {
	return recognizer.Line{
		Text:  text,
		Words: []geometry.Box{{X: 10, Y: minY, Width: 80, Height: height}},
	}
}

func TestRecognizePageAssignsAndExcludesStrokes(t *testing.T) {
	page := models.PageID{Book: 1, Page: 1}
	db := testutil.TestLedger(t)
	seedStrokes(t, db, page)

	recog := &fakeRecog{lines: []recognizer.Line{wordLine("Review mockups", 100, 20)}}
	notes := &fakeNotes{}
	logger := testutil.Logger()
	svc := New(db, recog, reconcile.NewEngine(notes, db, logger), logger, nil)

	sum, err := svc.RecognizePage(context.Background(), page)
	if err != nil {
		t.Fatalf("RecognizePage: %v", err)
	}
	if sum.Created != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if recog.strokesSeen != 1 {
		t.Errorf("recognizer saw %d strokes, want 1", recog.strokesSeen)
	}

	// The stroke is now assigned, so a second pass sends nothing to the
	// recognition service at all.
	sum, err = svc.RecognizePage(context.Background(), page)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if recog.calls != 1 {
		t.Errorf("recognizer called %d times, want 1 (second pass had no strokes)", recog.calls)
	}
	if sum.Created != 0 || sum.Updated != 0 {
		t.Errorf("second summary = %+v", sum)
	}
}

func TestRecognizePageServiceFailureKeepsStrokes(t *testing.T) {
	page := models.PageID{Book: 1, Page: 2}
	db := testutil.TestLedger(t)
	seedStrokes(t, db, page)

	recog := &fakeRecog{err: errors.New("service down")}
	logger := testutil.Logger()
	svc := New(db, recog, reconcile.NewEngine(&fakeNotes{}, db, logger), logger, nil)

	if _, err := svc.RecognizePage(context.Background(), page); err == nil {
		t.Fatal("expected recognition error")
	}

	un, err := db.Unrecognized(page)
	if err != nil {
		t.Fatal(err)
	}
	if len(un) != 1 {
		t.Errorf("strokes must stay unrecognized after failure, got %d", len(un))
	}
}

func TestRecognizePageSkipsLinesWithoutGeometry(t *testing.T) {
	page := models.PageID{Book: 1, Page: 3}
	db := testutil.TestLedger(t)
	seedStrokes(t, db, page)

	recog := &fakeRecog{lines: []recognizer.Line{{Text: "no boxes"}}}
	notes := &fakeNotes{}
	logger := testutil.Logger()
	svc := New(db, recog, reconcile.NewEngine(notes, db, logger), logger, nil)

	sum, err := svc.RecognizePage(context.Background(), page)
	if err != nil {
		t.Fatalf("RecognizePage: %v", err)
	}
	if sum.Created != 0 {
		t.Errorf("geometry-less line must not create blocks: %+v", sum)
	}
	if len(notes.blocks) != 0 {
		t.Errorf("blocks = %+v", notes.blocks)
	}

	un, _ := db.Unrecognized(page)
	if len(un) != 1 {
		t.Errorf("strokes behind a skipped line must stay unassigned, got %d", len(un))
	}
}

func TestPagesStatus(t *testing.T) {
	db := testutil.TestLedger(t)
	page := models.PageID{Book: 2, Page: 5}
	seedStrokes(t, db, page)

	logger := testutil.Logger()
	svc := New(db, &fakeRecog{}, reconcile.NewEngine(&fakeNotes{}, db, logger), logger, nil)

	statuses, err := svc.Pages(context.Background())
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("statuses = %+v", statuses)
	}
	st := statuses[0]
	if st.Page != page || st.Strokes != 1 || st.Unrecognized != 1 {
		t.Errorf("status = %+v", st)
	}
}
