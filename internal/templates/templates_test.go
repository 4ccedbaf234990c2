package templates

import (
	"strings"
	"testing"
)

// --- NewRenderer ---

func TestNewRenderer_Succeeds(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() failed: %v", err)
	}
	if r == nil {
		t.Fatal("NewRenderer() returned nil")
	}
}

func TestNewRenderer_AllNamesPresent(t *testing.T) {
	r := MustNewRenderer()
	for _, name := range Names() {
		if r.tmpl.Lookup(name) == nil {
			t.Errorf("template %q not loaded", name)
		}
	}
}

// --- Render ---

func TestRender_Parse(t *testing.T) {
	r := MustNewRenderer()

	out, err := r.Render(Parse, ParseData{Input: "The system shall export PDF."})
	if err != nil {
		t.Fatalf("Render(Parse) failed: %v", err)
	}
	if !strings.Contains(out, "The system shall export PDF.") {
		t.Errorf("Parse prompt missing input:\n%s", out)
	}
}

func TestRender_Review(t *testing.T) {
	r := MustNewRenderer()

	out, err := r.Render(Review, ParseData{Input: "Users must log in.\nPages are public."})
	if err != nil {
		t.Fatalf("Render(Review) failed: %v", err)
	}
	for _, want := range []string{"Pages are public.", `"conflicts"`, `"ambiguities"`, `"suggestions"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Review prompt missing %s:\n%s", want, out)
		}
	}
}

func TestRender_Checks(t *testing.T) {
	r := MustNewRenderer()
	data := CheckData{Requirements: "- Users must log in\n- Pages are public"}

	tests := []struct {
		name string
		key  string
	}{
		{Conflict, `"conflicts"`},
		{Clarity, `"ambiguities"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.name, data)
			if err != nil {
				t.Fatalf("Render(%s) failed: %v", tt.name, err)
			}
			for _, check := range []string{"- Users must log in", "- Pages are public", tt.key} {
				if !strings.Contains(out, check) {
					t.Errorf("%s output missing: %q", tt.name, check)
				}
			}
		})
	}
}

func TestRender_Improve(t *testing.T) {
	r := MustNewRenderer()

	out, err := r.Render(Improve, ImproveData{
		Requirements: "- Be fast",
		Conflicts:    "[]",
		Ambiguities:  `[{"req": "Be fast", "issue": "no metric"}]`,
	})
	if err != nil {
		t.Fatalf("Render(Improve) failed: %v", err)
	}
	for _, check := range []string{"- Be fast", "no metric", `"new_version"`, `"suggestions"`} {
		if !strings.Contains(out, check) {
			t.Errorf("Improve output missing: %q", check)
		}
	}
}

func TestRender_DoesNotEscapeHTML(t *testing.T) {
	r := MustNewRenderer()

	out, err := r.Render(Parse, ParseData{Input: "latency < 200ms & uptime > 99%"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "latency < 200ms & uptime > 99%") {
		t.Errorf("input was altered:\n%s", out)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := MustNewRenderer()
	if _, err := r.Render("nope.tmpl", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
