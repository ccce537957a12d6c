package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/geometry"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/ledger"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/logseq"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// memNotes is an in-memory note database used to exercise the applier and
// the pass state machine without HTTP.
type memNotes struct {
	containerID string
	blocks      []models.Block
	ops         []string // mutating call log, in issue order
	writes      int

	failInserts int // fail this many inserts before succeeding
	failUpdate  bool
	failProps   bool
	nextID      int
}

var _ logseq.Store = (*memNotes)(nil)

func newMemNotes(blocks ...models.Block) *memNotes {
	return &memNotes{containerID: "container", blocks: blocks}
}

func (m *memNotes) ContainerBlocks(_ context.Context, _ models.PageID) (string, []models.Block, error) {
	out := make([]models.Block, len(m.blocks))
	copy(out, m.blocks)
	return m.containerID, out, nil
}

func (m *memNotes) InsertBlock(_ context.Context, parentID, text string) (string, error) {
	if m.failInserts > 0 {
		m.failInserts--
		return "", errors.New("insert refused")
	}
	if parentID != m.containerID {
		return "", errors.New("unknown parent")
	}
	m.nextID++
	id := fmt.Sprintf("mem-%d", m.nextID)
	m.blocks = append(m.blocks, models.Block{ID: id, Text: text, Props: models.BlockProps{MergedLines: 1}})
	m.ops = append(m.ops, "insert:"+id)
	m.writes++
	return id, nil
}

func (m *memNotes) UpdateBlockText(_ context.Context, blockID, text string) error {
	if m.failUpdate {
		return errors.New("update refused")
	}
	b := m.find(blockID)
	if b == nil {
		return errors.New("no such block")
	}
	b.Text = text
	m.ops = append(m.ops, "text:"+blockID)
	m.writes++
	return nil
}

func (m *memNotes) UpsertProperty(_ context.Context, blockID, key, value string) error {
	if m.failProps {
		return errors.New("property refused")
	}
	b := m.find(blockID)
	if b == nil {
		return errors.New("no such block")
	}
	switch key {
	case logseq.PropYBounds:
		r, err := geometry.ParseRange(value)
		if err != nil {
			return err
		}
		b.Props.YBounds = r
	case logseq.PropCanonical:
		b.Props.Canonical = value
	case logseq.PropMergedLines:
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		b.Props.MergedLines = uint(n)
	}
	m.ops = append(m.ops, "prop:"+key+":"+blockID)
	m.writes++
	return nil
}

func (m *memNotes) find(id string) *models.Block {
	for i := range m.blocks {
		if m.blocks[i].ID == id {
			return &m.blocks[i]
		}
	}
	return nil
}

// memLedger records stroke assignments.
type memLedger struct {
	assigned map[string]string // stroke id -> block id
	failNext bool
}

var _ ledger.Store = (*memLedger)(nil)

func newMemLedger() *memLedger {
	return &memLedger{assigned: map[string]string{}}
}

func (m *memLedger) Assign(strokeIDs []string, blockID string) error {
	if m.failNext {
		m.failNext = false
		return errors.New("ledger refused")
	}
	for _, id := range strokeIDs {
		m.assigned[id] = blockID
	}
	return nil
}

func (m *memLedger) InsertStrokes([]models.Stroke) error { return nil }
func (m *memLedger) StrokesForPage(models.PageID) ([]models.Stroke, error) {
	return nil, nil
}
func (m *memLedger) Unrecognized(models.PageID) ([]models.Stroke, error) { return nil, nil }
func (m *memLedger) Pages() ([]models.PageID, error)                     { return nil, nil }
func (m *memLedger) HasImport(string) (bool, error)                      { return false, nil }
func (m *memLedger) RecordImport(string, string) error                   { return nil }
func (m *memLedger) Close() error                                        { return nil }
