// Package export renders analysis findings as downloadable reports.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/reqcheck/internal/analysis"
)

// Formats.
const (
	FormatJSON = "json"
	FormatDOCX = "docx"
)

// Content types of the rendered reports.
const (
	ContentTypeJSON = "application/json"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Report is the JSON export document.
type Report struct {
	ExportedAt string             `json:"exported_at"`
	Analysis   *analysis.Findings `json:"analysis"`
	Summary    Summary            `json:"summary"`
}

// Summary holds per-category counts.
type Summary struct {
	TotalConflicts   int `json:"total_conflicts"`
	TotalAmbiguities int `json:"total_ambiguities"`
	TotalSuggestions int `json:"total_suggestions"`
}

// Summarize counts the findings in f.
func Summarize(f *analysis.Findings) Summary {
	return Summary{
		TotalConflicts:   len(f.Conflicts),
		TotalAmbiguities: len(f.Ambiguities),
		TotalSuggestions: len(f.Suggestions),
	}
}

// NewReport wraps f with its export timestamp and counts.
func NewReport(f *analysis.Findings, now time.Time) *Report {
	if f == nil {
		f = analysis.EmptyFindings()
	}
	f = cloneFindings(f).Normalize()
	return &Report{
		ExportedAt: now.Format(time.RFC3339),
		Analysis:   f,
		Summary:    Summarize(f),
	}
}

// JSON renders f as an indented JSON report. Non-ASCII and HTML
// characters are written as-is.
func JSON(f *analysis.Findings, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewReport(f, now)); err != nil {
		return nil, fmt.Errorf("export: json: %w", err)
	}
	return buf.Bytes(), nil
}

// Render dispatches on format and returns the report bytes and content type.
func Render(format string, f *analysis.Findings, now time.Time) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		data, err := JSON(f, now)
		return data, ContentTypeJSON, err
	case FormatDOCX:
		data, err := DOCX(f, now)
		return data, ContentTypeDOCX, err
	default:
		return nil, "", fmt.Errorf("export: unknown format %q: must be one of: json, docx", format)
	}
}

// Filename returns the download name for an exported analysis:
// analysis_<id>_<YYYYMMDD_HHMMSS>.<ext>. A zero createdAt yields "unknown".
func Filename(id int64, createdAt time.Time, ext string) string {
	stamp := "unknown"
	if !createdAt.IsZero() {
		stamp = createdAt.Format("20060102_150405")
	}
	return fmt.Sprintf("analysis_%d_%s.%s", id, stamp, strings.TrimPrefix(ext, "."))
}

func cloneFindings(f *analysis.Findings) *analysis.Findings {
	return &analysis.Findings{
		Conflicts:   f.Conflicts,
		Ambiguities: f.Ambiguities,
		Suggestions: f.Suggestions,
	}
}
