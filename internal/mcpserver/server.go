// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes pen bridge tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/bridge"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// Server wraps the MCP server with pen bridge tools.
type Server struct {
	mcp *server.MCPServer
	svc *bridge.Service
}

// New creates a new MCP server with all bridge tools registered.
func New(svc *bridge.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"PenBridge",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List every notebook page in the stroke ledger with stroke counts."),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("page_status",
		mcp.WithDescription("Show stroke counts for one notebook page, including how many strokes still await recognition."),
		mcp.WithNumber("book", mcp.Required(), mcp.Description("Notebook number")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Page number within the notebook")),
	), s.pageStatus)

	s.mcp.AddTool(mcp.NewTool("recognize_page",
		mcp.WithDescription("Run one recognition and reconciliation pass for a notebook page. "+
			"Unrecognized strokes are sent to the recognition service and the resulting "+
			"lines are reconciled into the Logseq page. Returns the pass summary."),
		mcp.WithNumber("book", mcp.Required(), mcp.Description("Notebook number")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Page number within the notebook")),
	), s.recognizePage)

	s.mcp.AddTool(mcp.NewTool("recognize_all",
		mcp.WithDescription("Run one recognition pass over every page that has unrecognized strokes. "+
			"Returns one summary per page."),
	), s.recognizeAll)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listPages(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statuses, err := s.svc.Pages(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(statuses, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) pageStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, rerr := reqPage(req)
	if rerr != nil {
		return mcp.NewToolResultError(rerr.Error()), nil
	}
	status, err := s.svc.PageStatus(ctx, page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(status, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) recognizePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, rerr := reqPage(req)
	if rerr != nil {
		return mcp.NewToolResultError(rerr.Error()), nil
	}
	sum, err := s.svc.RecognizePage(ctx, page)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recognition failed for page %s: %v", page, err)), nil
	}
	out, _ := json.MarshalIndent(sum, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) recognizeAll(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries := s.svc.RecognizeAll(ctx)
	out, _ := json.MarshalIndent(summaries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func reqPage(req mcp.CallToolRequest) (models.PageID, error) {
	book, err := req.RequireInt("book")
	if err != nil {
		return models.PageID{}, err
	}
	page, err := req.RequireInt("page")
	if err != nil {
		return models.PageID{}, err
	}
	return models.PageID{Book: book, Page: page}, nil
}
