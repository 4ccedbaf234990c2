package docs

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// makeDOCX builds a minimal .docx whose body is the given XML.
func makeDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?><w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func cell(paras ...string) string {
	out := "<w:tc>"
	for _, p := range paras {
		out += para(p)
	}
	return out + "</w:tc>"
}

// --- Supported ---

func TestSupported(t *testing.T) {
	for _, ext := range []string{".txt", "txt", ".DOCX", " docx "} {
		if !Supported(ext) {
			t.Errorf("Supported(%q) = false", ext)
		}
	}
	for _, ext := range []string{".pdf", "", ".", ".doc"} {
		if Supported(ext) {
			t.Errorf("Supported(%q) = true", ext)
		}
	}
}

// --- Extract: txt ---

func TestExtract_TXT_UTF8(t *testing.T) {
	got, err := Extract([]byte("Le système doit répondre.\n"), ".txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Le système doit répondre.\n" {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_TXT_Latin1Fallback(t *testing.T) {
	got, err := Extract([]byte("caf\xe9 au lait"), "TXT")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "café au lait" {
		t.Errorf("Extract = %q, want %q", got, "café au lait")
	}
}

// --- Extract: docx ---

func TestExtract_DOCX_ParagraphsThenTables(t *testing.T) {
	body := para("  The system shall log in users.  ") +
		`<w:p/>` +
		`<w:tbl><w:tr>` + cell("ID") + cell("") + cell("Requirement") + `</w:tr>` +
		`<w:tr>` + cell("R1") + cell("Export", "as PDF") + `</w:tr>` +
		`<w:tr>` + cell(" ") + `</w:tr></w:tbl>` +
		para("Reports are exported nightly.")

	got, err := Extract(makeDOCX(t, body), ".docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "The system shall log in users.\nReports are exported nightly.\nID | Requirement\nR1 | Export\nas PDF"
	if got != want {
		t.Errorf("Extract =\n%q\nwant\n%q", got, want)
	}
}

func TestExtract_DOCX_RunsTabsAndBreaks(t *testing.T) {
	body := `<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>` +
		`<w:r><w:t>Part</w:t></w:r><w:r><w:tab/><w:t>one</w:t><w:br/><w:t>two</w:t></w:r></w:p>`

	got, err := Extract(makeDOCX(t, body), ".docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Part\tone\ntwo" {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtract_DOCX_SkipsNestedTables(t *testing.T) {
	body := `<w:tbl><w:tr><w:tc>` + para("outer") +
		`<w:tbl><w:tr>` + cell("inner") + `</w:tr></w:tbl>` +
		`</w:tc></w:tr></w:tbl>`

	got, err := Extract(makeDOCX(t, body), ".docx")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "outer" {
		t.Errorf("Extract = %q, want %q", got, "outer")
	}
}

func TestExtract_DOCX_Malformed(t *testing.T) {
	if _, err := Extract([]byte("not a zip"), ".docx"); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	_ = zw.Close()
	if _, err := Extract(buf.Bytes(), ".docx"); !errors.Is(err, ErrMalformed) {
		t.Errorf("missing document part: err = %v, want ErrMalformed", err)
	}

	if _, err := Extract(makeDOCX(t, "<w:p><w:r>"), ".docx"); !errors.Is(err, ErrMalformed) {
		t.Errorf("truncated XML: err = %v, want ErrMalformed", err)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract([]byte("%PDF"), ".pdf")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

// --- ExtractFile ---

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srs.docx")
	if err := os.WriteFile(path, makeDOCX(t, para("Hello docx")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if got != "Hello docx" {
		t.Errorf("ExtractFile = %q", got)
	}
}

func TestExtractFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ExtractFile(filepath.Join(dir, "missing.txt")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}

	path := filepath.Join(dir, "notes.md")
	_ = os.WriteFile(path, []byte("# hi"), 0o644)
	if _, err := ExtractFile(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("markdown: err = %v, want ErrUnsupportedFormat", err)
	}
}
