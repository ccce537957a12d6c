package logseq

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/geometry"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// blockNode mirrors the block objects returned by getPageBlocksTree.
type blockNode struct {
	UUID       string            `json:"uuid"`
	Content    string            `json:"content"`
	Properties map[string]string `json:"properties"`
	Children   []blockNode       `json:"children"`
}

// ContainerBlocks loads the "Recognized Content" container for a page and
// returns its id plus the bridge-managed children. The page and container
// are created when missing so that block creation always has a live parent
// (parent-before-child ordering is a hard requirement of the note
// database).
func (c *Client) ContainerBlocks(ctx context.Context, page models.PageID) (string, []models.Block, error) {
	name := PageName(page)

	var tree []blockNode
	if err := c.call(ctx, "logseq.Editor.getPageBlocksTree", []any{name}, &tree); err != nil {
		return "", nil, err
	}

	for _, node := range tree {
		if strings.TrimSpace(node.Content) != c.container {
			continue
		}
		blocks := make([]models.Block, 0, len(node.Children))
		for _, child := range node.Children {
			blocks = append(blocks, toBlock(child))
		}
		return node.UUID, blocks, nil
	}

	// No container yet. Create the page (idempotent) and append the
	// container as its first block.
	if err := c.call(ctx, "logseq.Editor.createPage", []any{name, map[string]any{}, map[string]any{"redirect": false, "createFirstBlock": false}}, nil); err != nil {
		return "", nil, err
	}
	var created struct {
		UUID string `json:"uuid"`
	}
	err := c.call(ctx, "logseq.Editor.appendBlockInPage", []any{name, c.container}, &created)
	if err != nil {
		return "", nil, err
	}
	if created.UUID == "" {
		return "", nil, fmt.Errorf("logseq: container creation returned no uuid for %s", name)
	}
	return created.UUID, nil, nil
}

// InsertBlock appends a new child block under parentID and returns the id
// the note database assigned.
func (c *Client) InsertBlock(ctx context.Context, parentID, text string) (string, error) {
	var created struct {
		UUID string `json:"uuid"`
	}
	opts := map[string]any{"sibling": false}
	if err := c.call(ctx, "logseq.Editor.insertBlock", []any{parentID, text, opts}, &created); err != nil {
		return "", err
	}
	if created.UUID == "" {
		return "", fmt.Errorf("logseq: insert under %s returned no uuid", parentID)
	}
	return created.UUID, nil
}

// UpdateBlockText rewrites a block's own text. Children and block-level
// metadata the user added are untouched.
func (c *Client) UpdateBlockText(ctx context.Context, blockID, text string) error {
	return c.call(ctx, "logseq.Editor.updateBlock", []any{blockID, text}, nil)
}

// UpsertProperty writes a single block property.
func (c *Client) UpsertProperty(ctx context.Context, blockID, key, value string) error {
	return c.call(ctx, "logseq.Editor.upsertBlockProperty", []any{blockID, key, value}, nil)
}

// toBlock converts an API block node into the typed domain block. Malformed
// or absent properties fall back to zero bounds and a merged-line count of
// one; the next pass will rewrite them on UPDATE.
func toBlock(node blockNode) models.Block {
	b := models.Block{
		ID:   node.UUID,
		Text: node.Content,
		Props: models.BlockProps{
			MergedLines: 1,
		},
	}
	if v, ok := node.Properties[PropYBounds]; ok {
		if r, err := geometry.ParseRange(v); err == nil {
			b.Props.YBounds = r
		}
	}
	if v, ok := node.Properties[PropCanonical]; ok {
		b.Props.Canonical = v
	}
	if v, ok := node.Properties[PropMergedLines]; ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil && n >= 1 {
			b.Props.MergedLines = uint(n)
		}
	}
	return b
}
