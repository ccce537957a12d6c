package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/apperr"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/canonical"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/ledger"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/logseq"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// Applier executes computed actions against the note database, one at a
// time, and records stroke-to-block associations after each confirmed
// write. A failed action is counted and logged, never retried; the
// affected strokes stay unassigned so the next pass picks them up again.
type Applier struct {
	notes  logseq.Store
	ledger ledger.Store
	logger *slog.Logger
}

// NewApplier creates an applier.
func NewApplier(notes logseq.Store, ldg ledger.Store, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{notes: notes, ledger: ldg, logger: logger}
}

// Apply runs every action sequentially under the given container block and
// returns the pass summary. Errors within one action never abort the
// remaining actions.
func (a *Applier) Apply(ctx context.Context, parentID string, actions []models.Action) models.Summary {
	var sum models.Summary
	for i := range actions {
		act := &actions[i]
		switch act.Kind {
		case models.ActionSkip:
			// No-op by construction: display text and properties stay
			// exactly as the user left them.
			sum.Skipped++
			a.logger.Debug("apply: skip", slog.String("block", act.Block.ID))

		case models.ActionCreate:
			if err := a.create(ctx, parentID, act); err != nil {
				sum.Errors++
				a.logger.Error("apply: create failed", slog.String("error", err.Error()))
				continue
			}
			sum.Created++

		case models.ActionUpdate, models.ActionMergePreserve, models.ActionConflict:
			if act.Kind == models.ActionConflict {
				sum.Conflicts++
			}
			if err := a.update(ctx, act); err != nil {
				sum.Errors++
				a.logger.Error("apply: update failed",
					slog.String("block", act.Block.ID),
					slog.String("error", err.Error()))
				continue
			}
			sum.Updated++
		}
	}
	return sum
}

// create inserts a new block with all three properties and assigns the
// contributing strokes once every write is confirmed.
func (a *Applier) create(ctx context.Context, parentID string, act *models.Action) error {
	if parentID == "" {
		// Creating a child without a live parent is a fatal error for
		// this action; the caller must re-establish the container first.
		return apperr.ErrOrderingViolation
	}

	line := act.Lines[0]
	text := canonical.Display(line.Text)

	blockID, err := a.notes.InsertBlock(ctx, parentID, text)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", apperr.ErrPersistence, err)
	}

	props := models.BlockProps{
		YBounds:     line.Bounds,
		Canonical:   line.Canonical,
		MergedLines: 1,
	}
	if err := a.writeProps(ctx, blockID, props); err != nil {
		return err
	}

	if err := a.ledger.Assign(act.StrokeIDs(), blockID); err != nil {
		return fmt.Errorf("ledger assign for block %s: %w", blockID, err)
	}
	a.logger.Info("apply: created block",
		slog.String("block", blockID),
		slog.String("ybounds", props.YBounds.String()))
	return nil
}

// update rewrites a block's text and properties, re-applying whatever
// task-state marker the user set on the old display text. Children and
// other block metadata are untouched because only the block's own text and
// properties are written.
func (a *Applier) update(ctx context.Context, act *models.Action) error {
	b := act.Block
	marker := canonical.Marker(b.Text)
	if marker == "" {
		marker = canonical.Marker(CombinedRaw(act.Lines))
	}
	text := canonical.Apply(marker, CombinedRaw(act.Lines))

	if err := a.notes.UpdateBlockText(ctx, b.ID, text); err != nil {
		return fmt.Errorf("%w: update text: %v", apperr.ErrPersistence, err)
	}

	bounds := act.Lines[0].Bounds
	for _, l := range act.Lines[1:] {
		bounds = bounds.Union(l.Bounds)
	}
	props := models.BlockProps{
		YBounds:     bounds,
		Canonical:   CombinedCanonical(act.Lines),
		MergedLines: uint(len(act.Lines)),
	}
	if err := a.writeProps(ctx, b.ID, props); err != nil {
		// Mid-sequence failure leaves a partial update; the canonical
		// comparison next pass re-detects the mismatch and corrects it.
		return err
	}

	if err := a.ledger.Assign(act.StrokeIDs(), b.ID); err != nil {
		return fmt.Errorf("ledger assign for block %s: %w", b.ID, err)
	}
	a.logger.Info("apply: updated block",
		slog.String("block", b.ID),
		slog.String("ybounds", props.YBounds.String()),
		slog.Uint64("merged_lines", uint64(props.MergedLines)))
	return nil
}

// writeProps issues the three property writes in a fixed order. The note
// database applies same-block writes in issue order; no multi-property
// transaction is assumed.
func (a *Applier) writeProps(ctx context.Context, blockID string, props models.BlockProps) error {
	writes := []struct {
		key   string
		value string
	}{
		{logseq.PropYBounds, props.YBounds.String()},
		{logseq.PropCanonical, props.Canonical},
		{logseq.PropMergedLines, fmt.Sprintf("%d", props.MergedLines)},
	}
	for _, w := range writes {
		if err := a.notes.UpsertProperty(ctx, blockID, w.key, w.value); err != nil {
			return fmt.Errorf("%w: property %s: %v", apperr.ErrPersistence, w.key, err)
		}
	}
	return nil
}
