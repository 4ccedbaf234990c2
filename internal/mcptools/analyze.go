package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/reqcheck/internal/analysis"
	"github.com/HendryAvila/reqcheck/internal/docs"
	"github.com/HendryAvila/reqcheck/internal/llm"
	"github.com/HendryAvila/reqcheck/internal/service"
	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
)

// AnalyzeTool handles the req_analyze MCP tool.
type AnalyzeTool struct {
	analyzer Analyzer
}

// NewAnalyzeTool creates an AnalyzeTool.
func NewAnalyzeTool(analyzer Analyzer) *AnalyzeTool {
	return &AnalyzeTool{analyzer: analyzer}
}

// Definition returns the MCP tool definition for req_analyze.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool("req_analyze",
		mcp.WithDescription(
			"Analyze a requirements document (SRS, user stories) for conflicting requirements, "+
				"ambiguous requirements, and rewrite suggestions. Pass the text directly, or the path "+
				"of a .txt or .docx file. The result is saved to the analysis history.",
		),
		mcp.WithString("text",
			mcp.Description("Requirements text to analyze"),
		),
		mcp.WithString("file_path",
			mcp.Description("Path to a .txt or .docx file to analyze instead of text"),
		),
		mcp.WithString("model",
			mcp.Description("Model to use (default: the configured precise model)"),
		),
		mcp.WithString("mode",
			mcp.Description("'full' runs the staged review; 'quick' asks the model for everything in one call"),
			mcp.Enum(string(service.ModeFull), string(service.ModeQuick)),
			mcp.DefaultString(string(service.ModeFull)),
		),
	)
}

// Handle processes the req_analyze tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	path := req.GetString("file_path", "")
	opts := service.Options{
		Model: req.GetString("model", ""),
		Mode:  req.GetString("mode", ""),
	}

	if strings.TrimSpace(text) == "" && path == "" {
		return mcp.NewToolResultError("'text' or 'file_path' is required"), nil
	}

	var (
		out *service.Outcome
		err error
	)
	if path != "" {
		out, err = t.analyzer.AnalyzeFile(ctx, path, opts)
	} else {
		out, err = t.analyzer.AnalyzeText(ctx, text, opts)
	}
	if err != nil {
		return mcp.NewToolResultError(describeError(err)), nil
	}

	var b strings.Builder
	b.WriteString("## Requirements Analysis\n\n")
	fmt.Fprintf(&b, "Analyzed %s with %s (%s mode) in %s.\n",
		humanize.Bytes(uint64(out.InputBytes)), out.Model, out.Mode, out.Duration.Round(time.Millisecond))
	if out.ID != 0 {
		fmt.Fprintf(&b, "Saved as analysis #%d (export with req_export).\n", out.ID)
	} else {
		b.WriteString("Not saved to history.\n")
	}
	b.WriteString("\n")
	f := out.Findings.Normalize()
	writeFindings(&b, f)
	if f.RawResponse != "" {
		b.WriteString("\nThe model did not answer in the expected format. Its reply:\n\n")
		b.WriteString(f.RawResponse)
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// describeError turns an analysis failure into a message for the host.
// Upstream response bodies are left out.
func describeError(err error) string {
	stage, staged := analysis.FailedStage(err)
	switch {
	case errors.Is(err, analysis.ErrEmptyInput):
		return "the input has no text to analyze"
	case errors.Is(err, docs.ErrNotFound):
		return "cannot read the document: " + strings.TrimPrefix(err.Error(), "docs: ")
	case errors.Is(err, llm.ErrNotConfigured):
		return "the model provider is not configured: set GEMINI_API_KEY or switch llm.provider to ollama"
	case errors.Is(err, llm.ErrTimeout) && staged:
		return fmt.Sprintf("analysis timed out at stage %q", stage)
	case errors.Is(err, llm.ErrRateLimited) && staged:
		return fmt.Sprintf("analysis failed at stage %q: the model provider is rate limiting requests, try again later", stage)
	case staged:
		return fmt.Sprintf("analysis failed at stage %q", stage)
	default:
		return fmt.Sprintf("analysis failed: %v", err)
	}
}
