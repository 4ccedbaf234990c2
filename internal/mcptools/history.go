package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── HistoryTool ─────────────────────────────────────────────────────────────

// HistoryTool handles the req_history MCP tool.
type HistoryTool struct {
	store History
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(store History) *HistoryTool {
	return &HistoryTool{store: store}
}

// Definition returns the MCP tool definition for req_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("req_history",
		mcp.WithDescription(
			"List past requirement analyses with their finding counts, newest first by default.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 50, max: 100)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of analyses to skip"),
		),
		mcp.WithString("order",
			mcp.Description("Sort by creation time: desc (default) or asc"),
			mcp.Enum(history.OrderDesc, history.OrderAsc),
		),
	)
}

// Handle processes the req_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := history.ListOptions{
		Limit:  intArg(req, "limit", history.DefaultLimit),
		Offset: intArg(req, "offset", 0),
		Order:  req.GetString("order", history.OrderDesc),
	}.Normalize()

	total, records, err := t.store.List(opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list analyses: %v", err)), nil
	}
	if total == 0 {
		return mcp.NewToolResultText("No analyses saved yet. Run req_analyze first."), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No analyses at offset %d (total: %d).", opts.Offset, total)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d-%d of %d analyses:\n\n", opts.Offset+1, opts.Offset+len(records), total)
	for i := range records {
		writeRecordLine(&b, &records[i])
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── GetTool ─────────────────────────────────────────────────────────────────

// GetTool handles the req_get MCP tool.
type GetTool struct {
	store History
}

// NewGetTool creates a GetTool.
func NewGetTool(store History) *GetTool {
	return &GetTool{store: store}
}

// Definition returns the MCP tool definition for req_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("req_get",
		mcp.WithDescription(
			"Show one saved analysis in full: its input, the conflicts, ambiguities and suggestions found.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Analysis ID"),
		),
	)
}

// Handle processes the req_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	rec, err := t.store.Get(int64(id))
	if errors.Is(err, history.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("analysis %d not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load analysis: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Analysis #%d\n\n", rec.ID)
	fmt.Fprintf(&b, "- **Created**: %s (%s)\n", rec.CreatedAt.Format("2006-01-02 15:04:05"), relTime(rec.CreatedAt))
	if rec.FileName != nil {
		fmt.Fprintf(&b, "- **File**: %s\n", *rec.FileName)
	}
	if rec.ModelUsed != nil {
		fmt.Fprintf(&b, "- **Model**: %s\n", *rec.ModelUsed)
	}
	if rec.ProcessingTimeSeconds != nil {
		fmt.Fprintf(&b, "- **Processing time**: %ds\n", *rec.ProcessingTimeSeconds)
	}
	if rec.TextInput != nil {
		fmt.Fprintf(&b, "\n### Input\n\n%s\n", truncate(*rec.TextInput, 2000))
	}
	b.WriteString("\n")
	writeFindings(&b, rec.Findings())
	return mcp.NewToolResultText(b.String()), nil
}

// ─── SearchTool ──────────────────────────────────────────────────────────────

// SearchTool handles the req_search MCP tool.
type SearchTool struct {
	store History
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store History) *SearchTool {
	return &SearchTool{store: store}
}

// Definition returns the MCP tool definition for req_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("req_search",
		mcp.WithDescription(
			"Search past analyses by the words of their input text or file name.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Words to search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 100)"),
		),
	)
}

// Handle processes the req_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	records, err := t.store.Search(query, intArg(req, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("No analyses found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d analyses:\n\n", len(records))
	for i := range records {
		writeRecordLine(&b, &records[i])
	}
	return mcp.NewToolResultText(b.String()), nil
}
