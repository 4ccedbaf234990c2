package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
	"github.com/gomutex/godocx/wml/stypes"

	"github.com/HendryAvila/reqcheck/internal/analysis"
)

// report wraps the document being built. The first heading error is kept
// and every later call becomes a no-op.
type report struct {
	doc *docx.RootDoc
	err error
}

func (r *report) heading(level uint, text string) {
	if r.err != nil {
		return
	}
	if _, err := r.doc.AddHeading(text, level); err != nil {
		r.err = err
	}
}

func (r *report) text(s string) { r.doc.AddParagraph(s) }

// labeled writes a paragraph with a bold label followed by value.
func (r *report) labeled(label, value string) {
	p := r.doc.AddParagraph("")
	p.AddText(label).Bold(true)
	p.AddText(value)
}

func (r *report) blank() { r.doc.AddEmptyParagraph() }

// DOCX renders f as a Word report.
func DOCX(f *analysis.Findings, now time.Time) ([]byte, error) {
	if f == nil {
		f = analysis.EmptyFindings()
	}
	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("export: docx: %w", err)
	}
	r := &report{doc: doc}

	r.heading(0, "Requirements Analysis Report")
	doc.AddParagraph("Generated at: " + now.Format("2006-01-02 15:04:05")).Justification(stypes.JustificationCenter)
	r.blank()

	s := Summarize(f)
	r.heading(1, "Summary")
	totals := doc.AddParagraph("")
	for i, line := range []struct {
		label string
		n     int
	}{
		{"Total Conflicts: ", s.TotalConflicts},
		{"Total Ambiguities: ", s.TotalAmbiguities},
		{"Total Suggestions: ", s.TotalSuggestions},
	} {
		if i > 0 {
			totals.AddRun().AddBreak(nil)
		}
		totals.AddText(line.label).Bold(true)
		totals.AddText(strconv.Itoa(line.n))
	}
	r.blank()

	r.heading(1, "Conflicts Detected")
	if len(f.Conflicts) == 0 {
		r.text("No conflicts found.")
		r.blank()
	}
	for i, c := range f.Conflicts {
		r.heading(2, fmt.Sprintf("Conflict %d", i+1))
		r.labeled("Requirement 1: ", c.Req1)
		r.labeled("Requirement 2: ", c.Req2)
		r.labeled("Description: ", c.Description)
		r.blank()
	}

	r.heading(1, "Ambiguities Detected")
	if len(f.Ambiguities) == 0 {
		r.text("No ambiguities found.")
		r.blank()
	}
	for i, a := range f.Ambiguities {
		r.heading(2, fmt.Sprintf("Ambiguity %d", i+1))
		r.labeled("Requirement: ", a.Req)
		r.labeled("Issue: ", a.Issue)
		r.blank()
	}

	r.heading(1, "Improvement Suggestions")
	if len(f.Suggestions) == 0 {
		r.text("No suggestions available.")
		r.blank()
	}
	for i, sg := range f.Suggestions {
		r.heading(2, fmt.Sprintf("Suggestion %d", i+1))
		r.labeled("Original: ", sg.Req)
		r.labeled("Improved Version: ", sg.NewVersion)
		r.blank()
	}

	if r.err != nil {
		return nil, fmt.Errorf("export: docx: %w", r.err)
	}
	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: docx: %w", err)
	}
	return buf.Bytes(), nil
}
