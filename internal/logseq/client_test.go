package logseq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// fakeAPI records calls and serves canned per-method responses.
type fakeAPI struct {
	t         *testing.T
	calls     []apiRequest
	responses map[string]string
}

func (f *fakeAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api" {
			f.t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			f.t.Errorf("auth header = %q", auth)
		}
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Fatalf("decode request: %v", err)
		}
		f.calls = append(f.calls, req)
		w.Header().Set("Content-Type", "application/json")
		if resp, ok := f.responses[req.Method]; ok {
			_, _ = w.Write([]byte(resp))
			return
		}
		_, _ = w.Write([]byte("null"))
	}
}

func newFake(t *testing.T, responses map[string]string) (*fakeAPI, *Client) {
	t.Helper()
	f := &fakeAPI{t: t, responses: responses}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, New(srv.URL, "test-token", "Recognized Content", time.Second)
}

func TestContainerBlocks(t *testing.T) {
	_, c := newFake(t, map[string]string{
		"logseq.Editor.getPageBlocksTree": `[
			{"uuid": "other", "content": "My own notes", "children": []},
			{
				"uuid": "container-1",
				"content": "Recognized Content",
				"children": [
					{
						"uuid": "b1",
						"content": "DONE Review mockups",
						"properties": {"ybounds": "100.00-140.00", "canonical": "Review mockups", "mergedlines": "1"}
					},
					{
						"uuid": "b2",
						"content": "Check emails",
						"properties": {"ybounds": "150.00-200.00", "canonical": "Check emails", "mergedlines": "2"}
					}
				]
			}
		]`,
	})

	id, blocks, err := c.ContainerBlocks(context.Background(), models.PageID{Book: 1, Page: 4})
	if err != nil {
		t.Fatalf("ContainerBlocks: %v", err)
	}
	if id != "container-1" {
		t.Errorf("container id = %q", id)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	b := blocks[0]
	if b.ID != "b1" || b.Text != "DONE Review mockups" {
		t.Errorf("block = %+v", b)
	}
	if b.Props.Canonical != "Review mockups" {
		t.Errorf("canonical = %q", b.Props.Canonical)
	}
	if b.Props.YBounds.MinY != 100 || b.Props.YBounds.MaxY != 140 {
		t.Errorf("ybounds = %v", b.Props.YBounds)
	}
	if blocks[1].Props.MergedLines != 2 {
		t.Errorf("mergedlines = %d, want 2", blocks[1].Props.MergedLines)
	}
}

func TestContainerBlocksCreatesContainer(t *testing.T) {
	f, c := newFake(t, map[string]string{
		"logseq.Editor.getPageBlocksTree": `[]`,
		"logseq.Editor.appendBlockInPage": `{"uuid": "new-container"}`,
	})

	id, blocks, err := c.ContainerBlocks(context.Background(), models.PageID{Book: 2, Page: 9})
	if err != nil {
		t.Fatalf("ContainerBlocks: %v", err)
	}
	if id != "new-container" {
		t.Errorf("container id = %q", id)
	}
	if len(blocks) != 0 {
		t.Errorf("fresh container should have no blocks, got %d", len(blocks))
	}

	// Page must be created before the container block is appended.
	var methods []string
	for _, call := range f.calls {
		methods = append(methods, call.Method)
	}
	want := []string{
		"logseq.Editor.getPageBlocksTree",
		"logseq.Editor.createPage",
		"logseq.Editor.appendBlockInPage",
	}
	if len(methods) != len(want) {
		t.Fatalf("calls = %v, want %v", methods, want)
	}
	for i := range want {
		if methods[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, methods[i], want[i])
		}
	}
}

func TestInsertBlock(t *testing.T) {
	f, c := newFake(t, map[string]string{
		"logseq.Editor.insertBlock": `{"uuid": "b-new"}`,
	})

	id, err := c.InsertBlock(context.Background(), "parent-1", "TODO Buy milk")
	if err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}
	if id != "b-new" {
		t.Errorf("id = %q", id)
	}
	call := f.calls[0]
	if call.Args[0] != "parent-1" || call.Args[1] != "TODO Buy milk" {
		t.Errorf("args = %v", call.Args)
	}
}

func TestInsertBlockNoUUID(t *testing.T) {
	_, c := newFake(t, map[string]string{
		"logseq.Editor.insertBlock": `null`,
	})
	if _, err := c.InsertBlock(context.Background(), "parent-1", "x"); err == nil {
		t.Fatal("expected error when insert returns no uuid")
	}
}

func TestUpdateAndProperties(t *testing.T) {
	f, c := newFake(t, nil)
	ctx := context.Background()

	if err := c.UpdateBlockText(ctx, "b1", "new text"); err != nil {
		t.Fatalf("UpdateBlockText: %v", err)
	}
	if err := c.UpsertProperty(ctx, "b1", PropCanonical, "new text"); err != nil {
		t.Fatalf("UpsertProperty: %v", err)
	}

	if f.calls[0].Method != "logseq.Editor.updateBlock" {
		t.Errorf("first call = %s", f.calls[0].Method)
	}
	if f.calls[1].Method != "logseq.Editor.upsertBlockProperty" {
		t.Errorf("second call = %s", f.calls[1].Method)
	}
	if f.calls[1].Args[1] != "canonical" {
		t.Errorf("property key = %v", f.calls[1].Args[1])
	}
}

func TestCallServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", "", time.Second)
	if err := c.UpdateBlockText(context.Background(), "b1", "x"); err == nil {
		t.Fatal("expected error on 500")
	}
}
