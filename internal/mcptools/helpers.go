// Package mcptools provides MCP tool handlers for requirements analysis
// and the analysis history.
//
// Each tool follows the same shape:
// - A struct with its dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Failures are reported as tool errors (IsError results), never as Go
// errors, so the host model can read and react to them.
package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/reqcheck/internal/analysis"
	"github.com/HendryAvila/reqcheck/internal/history"
	"github.com/HendryAvila/reqcheck/internal/service"
	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Analyzer runs analyses. *service.Service implements it.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string, opts service.Options) (*service.Outcome, error)
	AnalyzeFile(ctx context.Context, path string, opts service.Options) (*service.Outcome, error)
}

// History is the analysis store. *history.Store implements it.
type History interface {
	Get(id int64) (*history.Record, error)
	List(opts history.ListOptions) (int, []history.Record, error)
	Search(query string, limit int) ([]history.Record, error)
	Delete(id int64) (bool, error)
	Stats() (*history.Stats, error)
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// relTime renders t relative to now, e.g. "3 minutes ago".
func relTime(t time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}
	return humanize.RelTime(t, timeNow(), "ago", "from now")
}

// truncate shortens s to at most n runes, adding "..." when cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// recordLabel names a record by its file, or a snippet of its text.
func recordLabel(r *history.Record) string {
	if r.FileName != nil && *r.FileName != "" {
		return *r.FileName
	}
	if r.TextInput != nil {
		return truncate(*r.TextInput, 60)
	}
	return "(no input)"
}

// writeRecordLine writes the one-line summary used by list and search.
func writeRecordLine(b *strings.Builder, r *history.Record) {
	fmt.Fprintf(b, "#%d  %s  (%s)\n    %d conflicts, %d ambiguities, %d suggestions",
		r.ID, recordLabel(r), relTime(r.CreatedAt),
		len(r.Conflicts), len(r.Ambiguities), len(r.Suggestions),
	)
	if r.ModelUsed != nil {
		fmt.Fprintf(b, " | model: %s", *r.ModelUsed)
	}
	b.WriteString("\n\n")
}

// writeFindings renders findings as Markdown.
func writeFindings(b *strings.Builder, f *analysis.Findings) {
	fmt.Fprintf(b, "### Conflicts (%d)\n\n", len(f.Conflicts))
	for i, c := range f.Conflicts {
		fmt.Fprintf(b, "%d. **%s** vs **%s**\n   %s\n", i+1, c.Req1, c.Req2, c.Description)
	}
	if len(f.Conflicts) == 0 {
		b.WriteString("None found.\n")
	}

	fmt.Fprintf(b, "\n### Ambiguities (%d)\n\n", len(f.Ambiguities))
	for i, a := range f.Ambiguities {
		fmt.Fprintf(b, "%d. **%s**\n   %s\n", i+1, a.Req, a.Issue)
	}
	if len(f.Ambiguities) == 0 {
		b.WriteString("None found.\n")
	}

	fmt.Fprintf(b, "\n### Suggestions (%d)\n\n", len(f.Suggestions))
	for i, s := range f.Suggestions {
		fmt.Fprintf(b, "%d. %s\n   -> %s\n", i+1, s.Req, s.NewVersion)
	}
	if len(f.Suggestions) == 0 {
		b.WriteString("None.\n")
	}
}
