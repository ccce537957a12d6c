package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/ledger"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/logseq"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// State names the phases of a reconciliation pass.
type State string

const (
	StateLoading  State = "loading"
	StateMatching State = "matching"
	StateApplying State = "applying"
	StateDone     State = "done"
)

// Engine runs reconciliation passes. One pass handles one page, strictly
// sequentially: load existing blocks, compute actions, apply them one at a
// time. Callers must serialize concurrent passes on the same page; the
// engine reads a full block snapshot at LOADING and assumes no other
// writer mutates it mid-pass.
type Engine struct {
	notes  logseq.Store
	ledger ledger.Store
	logger *slog.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(notes logseq.Store, ldg ledger.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{notes: notes, ledger: ldg, logger: logger}
}

// RunPass reconciles one page's fresh recognized lines against its
// persisted blocks and returns the pass summary. An error is returned only
// when the pass cannot reach APPLYING (e.g. the block snapshot cannot be
// loaded); action-level failures are counted in the summary instead.
func (e *Engine) RunPass(ctx context.Context, page models.PageID, lines []models.RecognizedLine) (models.Summary, error) {
	passID := uuid.NewString()
	logger := e.logger.With(
		slog.String("pass", passID),
		slog.String("page", page.String()))

	logger.Info("pass: state", slog.String("state", string(StateLoading)))
	containerID, blocks, err := e.notes.ContainerBlocks(ctx, page)
	if err != nil {
		return models.Summary{PassID: passID, Page: page},
			fmt.Errorf("pass %s: load blocks for page %s: %w", passID, page, err)
	}

	logger.Info("pass: state", slog.String("state", string(StateMatching)),
		slog.Int("blocks", len(blocks)), slog.Int("lines", len(lines)))
	actions := ComputeActions(blocks, lines, logger)

	logger.Info("pass: state", slog.String("state", string(StateApplying)),
		slog.Int("actions", len(actions)))
	applier := NewApplier(e.notes, e.ledger, logger)
	sum := applier.Apply(ctx, containerID, actions)
	sum.PassID = passID
	sum.Page = page

	logger.Info("pass: state", slog.String("state", string(StateDone)),
		slog.Int("created", sum.Created),
		slog.Int("updated", sum.Updated),
		slog.Int("skipped", sum.Skipped),
		slog.Int("conflicts", sum.Conflicts),
		slog.Int("errors", sum.Errors))
	return sum, nil
}
