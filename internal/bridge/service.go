// Package bridge orchestrates the capture → recognition → reconciliation
// flow. One page is processed at a time; recognition requests carry only
// strokes the ledger has never seen recognized, while matching still runs
// against the page's full persisted block set.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/apperr"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/canonical"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/geometry"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/ledger"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/reconcile"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/recognizer"
)

// Notifier receives pass lifecycle events for the UI event stream.
type Notifier func(kind string, summary models.Summary)

// Service ties the ledger, the recognition client, and the reconciliation
// engine together.
type Service struct {
	ledger ledger.Store
	recog  recognizer.Service
	engine *reconcile.Engine
	logger *slog.Logger
	notify Notifier

	mu        sync.Mutex
	pageLocks map[models.PageID]*sync.Mutex
}

// New creates the bridge service. notify may be nil.
func New(ldg ledger.Store, recog recognizer.Service, engine *reconcile.Engine, logger *slog.Logger, notify Notifier) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:    ldg,
		recog:     recog,
		engine:    engine,
		logger:    logger,
		notify:    notify,
		pageLocks: make(map[models.PageID]*sync.Mutex),
	}
}

// pageLock returns the mutex serializing passes for one page. The matcher
// reads a full block snapshot and assumes no concurrent writer, so at most
// one pass may be active per page.
func (s *Service) pageLock(page models.PageID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.pageLocks[page]
	if !ok {
		l = &sync.Mutex{}
		s.pageLocks[page] = l
	}
	return l
}

// RecognizePage runs one full reconciliation pass for a page: collect
// unrecognized strokes, recognize, match, apply.
func (s *Service) RecognizePage(ctx context.Context, page models.PageID) (models.Summary, error) {
	l := s.pageLock(page)
	l.Lock()
	defer l.Unlock()

	strokes, err := s.ledger.Unrecognized(page)
	if err != nil {
		return models.Summary{Page: page}, err
	}
	if len(strokes) == 0 {
		s.logger.Debug("bridge: nothing to recognize", slog.String("page", page.String()))
		return models.Summary{Page: page}, nil
	}

	if s.notify != nil {
		s.notify("pass.started", models.Summary{Page: page})
	}

	rawLines, err := s.recog.Recognize(ctx, page, strokes)
	if err != nil {
		// Single attempt per page; strokes stay unassigned and will be
		// re-sent on the next pass.
		return models.Summary{Page: page}, fmt.Errorf("bridge: recognize page %s: %w", page, err)
	}

	lines := s.toRecognizedLines(page, rawLines, strokes)
	sum, err := s.engine.RunPass(ctx, page, lines)
	if err != nil {
		return sum, err
	}
	if s.notify != nil {
		s.notify("pass.completed", sum)
	}
	return sum, nil
}

// RecognizeAll processes every page with unrecognized strokes, strictly
// sequentially to keep external API call volume predictable. One page's
// failure never halts its siblings.
func (s *Service) RecognizeAll(ctx context.Context) []models.Summary {
	pages, err := s.ledger.Pages()
	if err != nil {
		s.logger.Error("bridge: list pages", slog.String("error", err.Error()))
		return nil
	}

	var out []models.Summary
	for _, page := range pages {
		sum, err := s.RecognizePage(ctx, page)
		if err != nil {
			s.logger.Error("bridge: page pass failed",
				slog.String("page", page.String()),
				slog.String("error", err.Error()))
			sum.Errors++
		}
		out = append(out, sum)
	}
	return out
}

// RecognizePages runs passes for an explicit page set, sequentially.
func (s *Service) RecognizePages(ctx context.Context, pages map[models.PageID]struct{}) {
	for page := range pages {
		if _, err := s.RecognizePage(ctx, page); err != nil {
			s.logger.Error("bridge: page pass failed",
				slog.String("page", page.String()),
				slog.String("error", err.Error()))
		}
	}
}

// toRecognizedLines enriches raw service lines with geometry, canonical
// text, and the stroke ids they consumed. Lines without word geometry are
// dropped for this pass with a logged decision; their strokes stay
// unassigned and retry next pass.
func (s *Service) toRecognizedLines(page models.PageID, raw []recognizer.Line, strokes []models.Stroke) []models.RecognizedLine {
	type strokeBounds struct {
		id     string
		bounds geometry.Range
	}
	sb := make([]strokeBounds, 0, len(strokes))
	for _, st := range strokes {
		bounds, err := st.Bounds()
		if err != nil {
			s.logger.Warn("bridge: stroke without geometry",
				slog.String("page", page.String()),
				slog.String("stroke", st.ID))
			continue
		}
		sb = append(sb, strokeBounds{id: st.ID, bounds: bounds})
	}

	lines := make([]models.RecognizedLine, 0, len(raw))
	for i, rl := range raw {
		bounds, err := geometry.LineBounds(rl.Words)
		if err != nil {
			if errors.Is(err, apperr.ErrGeometryMissing) {
				s.logger.Warn("bridge: line without word boxes, skipped for this pass",
					slog.String("page", page.String()),
					slog.Int("line", i),
					slog.String("text", rl.Text))
				continue
			}
			s.logger.Error("bridge: line bounds", slog.String("error", err.Error()))
			continue
		}

		line := models.RecognizedLine{
			Text:        rl.Text,
			Canonical:   canonical.Canonicalize(rl.Text),
			Bounds:      bounds,
			IndentLevel: rl.IndentLevel,
			MergedCount: 1,
		}
		// Attribute strokes spatially: the service does not report which
		// strokes produced which line.
		for _, st := range sb {
			if st.bounds.Overlaps(bounds) {
				line.StrokeIDs = append(line.StrokeIDs, st.id)
			}
		}
		lines = append(lines, line)
	}
	return lines
}
