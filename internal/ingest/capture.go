// Package ingest imports smartpen capture exports into the stroke ledger.
// Captures arrive as JSON files dropped into an inbox directory, either in
// bulk or streamed per session by the pen's companion app.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/geometry"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// captureFile mirrors the pen export format: a flat list of strokes, each
// tagged with its paper (book, page) coordinates and the capture start
// timestamp in epoch milliseconds.
type captureFile struct {
	Device  string `json:"device"`
	Strokes []struct {
		Book      int               `json:"book"`
		Page      int               `json:"page"`
		StartTime int64             `json:"startTime"`
		Dots      []geometry.Sample `json:"dots"`
	} `json:"strokes"`
}

// ParseCapture decodes a pen export file into domain strokes. Stroke ids
// are the capture start timestamps, which the pen guarantees are stable
// and unique per stroke; this is what lets the ledger survive restarts.
func ParseCapture(data []byte) ([]models.Stroke, error) {
	var file captureFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ingest: parse capture: %w", err)
	}

	strokes := make([]models.Stroke, 0, len(file.Strokes))
	for i, raw := range file.Strokes {
		if raw.StartTime == 0 {
			return nil, fmt.Errorf("ingest: stroke %d has no start time", i)
		}
		if len(raw.Dots) == 0 {
			// A stroke without samples cannot be positioned; drop it
			// rather than poisoning geometry later.
			continue
		}
		strokes = append(strokes, models.Stroke{
			ID:         strconv.FormatInt(raw.StartTime, 10),
			Page:       models.PageID{Book: raw.Book, Page: raw.Page},
			Samples:    raw.Dots,
			CapturedAt: time.UnixMilli(raw.StartTime),
		})
	}
	return strokes, nil
}
