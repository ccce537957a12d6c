package bridge

import (
	"context"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// PageStatus summarizes one page's capture state.
type PageStatus struct {
	Page         models.PageID `json:"page"`
	Strokes      int           `json:"strokes"`
	Unrecognized int           `json:"unrecognized"`
}

// Pages returns every known page with its stroke counts.
func (s *Service) Pages(_ context.Context) ([]PageStatus, error) {
	pages, err := s.ledger.Pages()
	if err != nil {
		return nil, err
	}
	out := make([]PageStatus, 0, len(pages))
	for _, page := range pages {
		all, err := s.ledger.StrokesForPage(page)
		if err != nil {
			return nil, err
		}
		un, err := s.ledger.Unrecognized(page)
		if err != nil {
			return nil, err
		}
		out = append(out, PageStatus{Page: page, Strokes: len(all), Unrecognized: len(un)})
	}
	return out, nil
}

// PageStatus returns one page's capture state.
func (s *Service) PageStatus(_ context.Context, page models.PageID) (PageStatus, error) {
	all, err := s.ledger.StrokesForPage(page)
	if err != nil {
		return PageStatus{}, err
	}
	un, err := s.ledger.Unrecognized(page)
	if err != nil {
		return PageStatus{}, err
	}
	return PageStatus{Page: page, Strokes: len(all), Unrecognized: len(un)}, nil
}
