// Package geometry derives vertical extents for recognized lines and pen
// strokes. Y-bounds are the matching key between recognition output and
// persisted blocks, so all overlap logic lives here.
package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/apperr"
)

// Range is a closed vertical interval on a page, in pen coordinate units.
type Range struct {
	MinY float64
	MaxY float64
}

// Overlaps reports whether two ranges share any vertical extent.
// Touching endpoints count as overlap.
func (r Range) Overlaps(other Range) bool {
	return r.MinY <= other.MaxY && other.MinY <= r.MaxY
}

// Union returns the smallest range covering both r and other.
func (r Range) Union(other Range) Range {
	out := r
	if other.MinY < out.MinY {
		out.MinY = other.MinY
	}
	if other.MaxY > out.MaxY {
		out.MaxY = other.MaxY
	}
	return out
}

// Midpoint returns the vertical center of the range.
func (r Range) Midpoint() float64 {
	return (r.MinY + r.MaxY) / 2
}

// String formats the range as "<minY>-<maxY>" with two-decimal precision.
// This is the persisted yBounds property format and must round-trip.
func (r Range) String() string {
	return fmt.Sprintf("%.2f-%.2f", r.MinY, r.MaxY)
}

// ParseRange parses the persisted "<minY>-<maxY>" property format.
func ParseRange(s string) (Range, error) {
	// MinY may itself be negative, so split on the last separator that
	// leaves a parseable left-hand side.
	s = strings.TrimSpace(s)
	for i := len(s) - 1; i > 0; i-- {
		if s[i] != '-' {
			continue
		}
		minY, errMin := strconv.ParseFloat(s[:i], 64)
		maxY, errMax := strconv.ParseFloat(s[i+1:], 64)
		if errMin == nil && errMax == nil {
			return Range{MinY: minY, MaxY: maxY}, nil
		}
	}
	return Range{}, fmt.Errorf("geometry: parse range %q: malformed", s)
}

// Box is an axis-aligned bounding box as reported by the recognition
// service for a single word.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sample is one (x, y, pressure) point of a captured stroke.
type Sample struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure"`
}

// LineBounds returns the vertical extent across all word boxes of a line.
// A line without word geometry cannot be positioned on the page and yields
// apperr.ErrGeometryMissing.
func LineBounds(words []Box) (Range, error) {
	if len(words) == 0 {
		return Range{}, apperr.ErrGeometryMissing
	}
	r := Range{MinY: words[0].Y, MaxY: words[0].Y + words[0].Height}
	for _, w := range words[1:] {
		r = r.Union(Range{MinY: w.Y, MaxY: w.Y + w.Height})
	}
	return r, nil
}

// StrokeBounds returns the vertical extent of a stroke's samples. A
// single-sample stroke yields a degenerate range with MinY == MaxY.
func StrokeBounds(samples []Sample) (Range, error) {
	if len(samples) == 0 {
		return Range{}, apperr.ErrGeometryMissing
	}
	r := Range{MinY: samples[0].Y, MaxY: samples[0].Y}
	for _, s := range samples[1:] {
		if s.Y < r.MinY {
			r.MinY = s.Y
		}
		if s.Y > r.MaxY {
			r.MaxY = s.Y
		}
	}
	return r, nil
}
