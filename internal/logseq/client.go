// Package logseq implements the note database client. Logseq exposes a
// request/response HTTP API: every call is a POST of {method, args} and
// property writes for one block are applied in the order issued, which the
// persistence adapter relies on (text first, then properties).
package logseq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// Property keys persisted on every bridge-managed block.
const (
	PropYBounds     = "ybounds"
	PropCanonical   = "canonical"
	PropMergedLines = "mergedlines"
)

// Store is the subset of the note database API the bridge depends on.
type Store interface {
	// ContainerBlocks returns the container block id and its direct
	// children for a page, creating page and container when absent.
	ContainerBlocks(ctx context.Context, page models.PageID) (string, []models.Block, error)
	InsertBlock(ctx context.Context, parentID, text string) (string, error)
	UpdateBlockText(ctx context.Context, blockID, text string) error
	UpsertProperty(ctx context.Context, blockID, key, value string) error
}

// Client talks to the Logseq HTTP API.
type Client struct {
	endpoint  string
	token     string
	container string
	http      *http.Client
}

// New creates a Logseq client. container is the text of the fixed parent
// block all recognized content is filed under.
func New(endpoint, token, container string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if container == "" {
		container = "Recognized Content"
	}
	return &Client{
		endpoint:  endpoint,
		token:     token,
		container: container,
		http:      &http.Client{Timeout: timeout},
	}
}

var _ Store = (*Client)(nil)

// PageName maps a physical page to its note-database page name.
func PageName(page models.PageID) string {
	return fmt.Sprintf("pen/book-%d/page-%d", page.Book, page.Page)
}

type apiRequest struct {
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// call performs one API request and decodes the result into out (when
// out is non-nil).
func (c *Client) call(ctx context.Context, method string, args []any, out any) error {
	jsonBody, err := json.Marshal(apiRequest{Method: method, Args: args})
	if err != nil {
		return fmt.Errorf("logseq: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("logseq: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("logseq: %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("logseq: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("logseq: %s: status %d: %s", method, resp.StatusCode, string(body))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("logseq: unmarshal %s response: %w", method, err)
	}
	return nil
}
