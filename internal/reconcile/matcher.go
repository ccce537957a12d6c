// Package reconcile implements the transcript reconciliation engine: it
// matches freshly recognized lines against previously persisted blocks and
// computes the minimal set of actions that brings the block set in line
// with the new recognition while preserving blocks whose canonical content
// is unchanged.
package reconcile

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/canonical"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// ComputeActions runs the greedy, single-pass, order-independent matching
// over a page's existing blocks and fresh recognized lines.
//
// Candidate matching is purely spatial: a line is a candidate for a block
// iff their Y-bounds overlap. Positional indexes are useless here because
// the recognition service may return lines in a different order, or a
// different count, between passes.
func ComputeActions(blocks []models.Block, lines []models.RecognizedLine, logger *slog.Logger) []models.Action {
	if logger == nil {
		logger = slog.Default()
	}

	sorted := make([]models.RecognizedLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bounds.MinY < sorted[j].Bounds.MinY
	})

	// Assign each line to at most one block. A line overlapping several
	// blocks goes to the one with the closest Y-bounds midpoint; that
	// tie-break is a policy heuristic, not a contract.
	assigned := make(map[int]int, len(sorted)) // line index -> block index
	for li, line := range sorted {
		best := -1
		bestDist := math.Inf(1)
		for bi, b := range blocks {
			if !line.Bounds.Overlaps(b.Props.YBounds) {
				continue
			}
			d := math.Abs(line.Bounds.Midpoint() - b.Props.YBounds.Midpoint())
			if d < bestDist {
				best = bi
				bestDist = d
			}
		}
		if best >= 0 {
			assigned[li] = best
		}
	}

	var actions []models.Action

	for bi := range blocks {
		b := &blocks[bi]

		var overlapping []models.RecognizedLine
		for li, line := range sorted {
			if target, ok := assigned[li]; ok && target == bi {
				overlapping = append(overlapping, line)
			}
		}
		if len(overlapping) == 0 {
			// Untouched this pass; new strokes may still reach it later.
			continue
		}

		candidate := combineCanonical(b, overlapping)
		if candidate == b.Props.Canonical {
			actions = append(actions, models.Action{
				Kind:  models.ActionSkip,
				Lines: overlapping,
				Block: b,
			})
			continue
		}

		action := models.Action{Lines: overlapping, Block: b}
		delta := int(b.Props.MergedLines) - len(overlapping)
		switch {
		case delta > 1 || delta < -1:
			// Handwriting structure changed more than expected, e.g. a
			// new line written inside a previously merged block. Flag
			// and proceed with a best-effort update.
			action.Kind = models.ActionConflict
			action.Conflict = &models.ConflictDetail{
				ExpectedLines: b.Props.MergedLines,
				ActualLines:   len(overlapping),
				Reason:        "overlap count deviates from recorded merged-line count",
			}
			logger.Warn("reconcile: overlap conflict",
				slog.String("block", b.ID),
				slog.Uint64("expected_lines", uint64(b.Props.MergedLines)),
				slog.Int("actual_lines", len(overlapping)))
		case b.Props.MergedLines > 1 || len(overlapping) > 1:
			action.Kind = models.ActionMergePreserve
		default:
			action.Kind = models.ActionUpdate
		}
		actions = append(actions, action)
	}

	// Any line no block claimed is genuinely new content.
	for li, line := range sorted {
		if _, ok := assigned[li]; ok {
			continue
		}
		actions = append(actions, models.Action{
			Kind:  models.ActionCreate,
			Lines: []models.RecognizedLine{line},
		})
	}

	return actions
}

// combineCanonical produces the comparison text for a block's overlapping
// lines. The merge-aware rule: a block the user merged from several lines
// keeps matching as a unit even when the service's line segmentation
// varies, because all overlapping lines are joined in ascending Y order
// before comparing.
func combineCanonical(b *models.Block, overlapping []models.RecognizedLine) string {
	if b.Props.MergedLines == 1 && len(overlapping) == 1 {
		return canonical.Canonicalize(overlapping[0].Canonical)
	}
	parts := make([]string, len(overlapping))
	for i, l := range overlapping {
		parts[i] = l.Canonical
	}
	return canonical.Canonicalize(strings.Join(parts, " "))
}

// CombinedRaw joins the raw recognized texts of an action's lines in
// ascending Y order; the applier derives fresh display text from it.
func CombinedRaw(lines []models.RecognizedLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, " ")
}

// CombinedCanonical is the canonical form the applier persists for update
// actions.
func CombinedCanonical(lines []models.RecognizedLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Canonical
	}
	return canonical.Canonicalize(strings.Join(parts, " "))
}
