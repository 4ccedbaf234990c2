// Package templates renders the prompts sent to the completion clients.
//
// Prompt bodies live in embedded .tmpl files so they can be reworded
// without touching the pipeline code.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Template names.
const (
	Parse    = "parse.tmpl"
	Conflict = "conflict.tmpl"
	Clarity  = "clarity.tmpl"
	Improve  = "improve.tmpl"
	Review   = "review.tmpl"
)

// ParseData feeds the Parse and Review prompts.
type ParseData struct {
	Input string
}

// CheckData feeds the Conflict and Clarity prompts.
// Requirements is a bulleted list, one "- req" per line.
type CheckData struct {
	Requirements string
}

// ImproveData feeds the Improve prompt. Conflicts and Ambiguities are
// indented JSON arrays.
type ImproveData struct {
	Requirements string
	Conflicts    string
	Ambiguities  string
}

// Renderer holds the parsed prompt templates. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded prompt.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("prompts").Option("missingkey=error").ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("templates: parsing prompts: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// MustNewRenderer is NewRenderer for package-level defaults; the embedded
// templates are fixed at build time, so a failure is a programming error.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("templates: rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// Names returns the names of all prompt templates.
func Names() []string {
	return []string{Parse, Conflict, Clarity, Improve, Review}
}
