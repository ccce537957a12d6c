// Package models defines the domain types for the smartpen bridge.
package models

import (
	"fmt"
	"time"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/geometry"
)

// PageID identifies a physical notebook page as a (book, page) pair. Both
// values come from the pen's paper encoding and are stable across captures.
type PageID struct {
	Book int `json:"book"`
	Page int `json:"page"`
}

// String renders the id in "book/page" form for logs and URLs.
func (p PageID) String() string {
	return fmt.Sprintf("%d/%d", p.Book, p.Page)
}

// Stroke is one continuous pen-down-to-pen-up path captured on a page.
//
// ID is derived from the capture start timestamp and is stable across
// process restarts. BlockRef is set only by the persistence adapter after a
// reconciliation pass confirms the write that consumed the stroke; an empty
// BlockRef means the stroke has never been recognized into a block.
type Stroke struct {
	ID         string            `json:"id"`
	Page       PageID            `json:"page"`
	Samples    []geometry.Sample `json:"samples"`
	BlockRef   string            `json:"blockRef,omitempty"`
	CapturedAt time.Time         `json:"capturedAt"`
}

// Bounds returns the stroke's vertical extent.
func (s *Stroke) Bounds() (geometry.Range, error) {
	return geometry.StrokeBounds(s.Samples)
}

// RecognizedLine is one line returned by the recognition service, enriched
// with derived geometry and the canonical comparison form. It lives only
// for the duration of a single reconciliation pass.
type RecognizedLine struct {
	Text        string
	Canonical   string
	Bounds      geometry.Range
	IndentLevel int
	// MergedCount is the number of raw service lines combined into this
	// one; 1 for an ordinary line.
	MergedCount int
	// StrokeIDs are the capture strokes the service consumed to produce
	// this line; the ledger assigns them once the line is persisted.
	StrokeIDs []string
}

// BlockProps are the three reconciliation properties persisted on every
// bridge-managed block.
type BlockProps struct {
	// YBounds is the vertical extent last written for the block,
	// persisted as "<minY>-<maxY>" with two-decimal precision.
	YBounds geometry.Range
	// Canonical is the last canonical text the engine wrote or confirmed.
	// It never reflects live, possibly user-edited, display text.
	Canonical string
	// MergedLines is >= 1; values above 1 mark a block intentionally
	// spanning the space of multiple recognized lines.
	MergedLines uint
}

// Block is a persisted outline unit in the note database.
type Block struct {
	ID    string
	Text  string
	Props BlockProps
}

// ActionKind enumerates the decisions the block matcher can take.
type ActionKind string

const (
	ActionCreate        ActionKind = "create"
	ActionUpdate        ActionKind = "update"
	ActionSkip          ActionKind = "skip"
	ActionMergePreserve ActionKind = "merge_preserve"
	ActionConflict      ActionKind = "conflict"
)

// Action is one computed reconciliation decision. Actions are ephemeral:
// computed per page per pass, applied sequentially, never persisted.
type Action struct {
	Kind ActionKind
	// Lines are the fresh recognized lines backing the action, in
	// ascending Y order.
	Lines []RecognizedLine
	// Block is the target for update/skip/merge/conflict actions; nil
	// for create.
	Block *Block
	// Conflict carries detail when the overlap count deviated from the
	// block's recorded merged-line count.
	Conflict *ConflictDetail
}

// ConflictDetail records an overlap-count mismatch for later inspection.
type ConflictDetail struct {
	ExpectedLines uint
	ActualLines   int
	Reason        string
}

// StrokeIDs returns the union of stroke ids across the action's lines.
func (a *Action) StrokeIDs() []string {
	var ids []string
	for _, l := range a.Lines {
		ids = append(ids, l.StrokeIDs...)
	}
	return ids
}

// Summary is the per-pass outcome reported to the caller and published on
// the event stream. Every non-skip outcome is attributable to a logged
// decision.
type Summary struct {
	PassID    string `json:"passId"`
	Page      PageID `json:"page"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Conflicts int    `json:"conflicts"`
	Errors    int    `json:"errors"`
}
