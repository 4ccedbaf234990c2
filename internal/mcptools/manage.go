package mcptools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/reqcheck/internal/export"
	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── DeleteTool ──────────────────────────────────────────────────────────────

// DeleteTool handles the req_delete MCP tool.
type DeleteTool struct {
	store History
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(store History) *DeleteTool {
	return &DeleteTool{store: store}
}

// Definition returns the MCP tool definition for req_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("req_delete",
		mcp.WithDescription("Permanently delete a saved analysis by ID."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Analysis ID to delete"),
		),
	)
}

// Handle processes the req_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	deleted, err := t.store.Delete(int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete analysis: %v", err)), nil
	}
	if !deleted {
		return mcp.NewToolResultError(fmt.Sprintf("analysis %d not found", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Analysis %d deleted", id)), nil
}

// ─── ExportTool ──────────────────────────────────────────────────────────────

// ExportTool handles the req_export MCP tool.
type ExportTool struct {
	store History
}

// NewExportTool creates an ExportTool.
func NewExportTool(store History) *ExportTool {
	return &ExportTool{store: store}
}

// Definition returns the MCP tool definition for req_export.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("req_export",
		mcp.WithDescription(
			"Export a saved analysis as a report. JSON is returned inline unless output_dir is given; "+
				"DOCX always needs output_dir and is written there as analysis_<id>_<timestamp>.docx.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Analysis ID to export"),
		),
		mcp.WithString("format",
			mcp.Description("Report format: json (default) or docx"),
			mcp.Enum(export.FormatJSON, export.FormatDOCX),
			mcp.DefaultString(export.FormatJSON),
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory to write the report file into"),
		),
	)
}

// Handle processes the req_export tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	format := strings.ToLower(req.GetString("format", export.FormatJSON))
	if format != export.FormatJSON && format != export.FormatDOCX {
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q: must be json or docx", format)), nil
	}
	dir := req.GetString("output_dir", "")
	if format == export.FormatDOCX && dir == "" {
		return mcp.NewToolResultError("'output_dir' is required for docx exports"), nil
	}

	rec, err := t.store.Get(int64(id))
	if errors.Is(err, history.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("analysis %d not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load analysis: %v", err)), nil
	}

	data, _, err := export.Render(format, rec.Findings(), timeNow())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	if dir == "" {
		return mcp.NewToolResultText(string(data)), nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot create %s: %v", dir, err)), nil
	}
	path := filepath.Join(dir, export.Filename(rec.ID, rec.CreatedAt, format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot write report: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Exported analysis %d to %s (%s)", rec.ID, path, humanize.Bytes(uint64(len(data))))), nil
}

// ─── StatsTool ───────────────────────────────────────────────────────────────

// StatsTool handles the req_stats MCP tool.
type StatsTool struct {
	store History
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(store History) *StatsTool {
	return &StatsTool{store: store}
}

// Definition returns the MCP tool definition for req_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("req_stats",
		mcp.WithDescription("Show analysis history statistics: number of analyses and total findings per category."),
	)
}

// Handle processes the req_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("## Analysis History\n\n")
	fmt.Fprintf(&b, "- **Analyses**: %s\n", humanize.Comma(int64(stats.TotalAnalyses)))
	fmt.Fprintf(&b, "- **Conflicts found**: %s\n", humanize.Comma(int64(stats.TotalConflicts)))
	fmt.Fprintf(&b, "- **Ambiguities found**: %s\n", humanize.Comma(int64(stats.TotalAmbiguities)))
	fmt.Fprintf(&b, "- **Suggestions made**: %s\n", humanize.Comma(int64(stats.TotalSuggestions)))
	if stats.LastAnalysisAt != nil {
		fmt.Fprintf(&b, "- **Last analysis**: %s\n", relTime(*stats.LastAnalysisAt))
	} else {
		b.WriteString("- **Last analysis**: never\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
