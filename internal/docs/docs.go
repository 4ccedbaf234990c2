// Package docs extracts plain text from uploaded requirement documents.
//
// Supported formats are plain text (.txt) and Word documents (.docx).
// Text files are read as UTF-8 and fall back to ISO-8859-1 when the bytes
// are not valid UTF-8. Word documents yield their body paragraphs followed
// by one line per table row.
package docs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Errors returned by the extractor.
var (
	ErrUnsupportedFormat = errors.New("docs: unsupported file type")
	ErrNotFound          = errors.New("docs: file not found")
	ErrMalformed         = errors.New("docs: malformed document")
)

// Extensions handled by Extract.
const (
	ExtTXT  = ".txt"
	ExtDOCX = ".docx"
)

// DOCXContentType is the media type of Word documents.
const DOCXContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// SupportedExtensions returns the extensions Extract understands.
func SupportedExtensions() []string {
	return []string{ExtTXT, ExtDOCX}
}

// Supported reports whether ext (with or without the leading dot, any case)
// can be extracted.
func Supported(ext string) bool {
	switch normalizeExt(ext) {
	case ExtTXT, ExtDOCX:
		return true
	}
	return false
}

// Extract returns the text of a document given its bytes and extension.
func Extract(data []byte, ext string) (string, error) {
	switch e := normalizeExt(ext); e {
	case ExtTXT:
		return decodeText(data)
	case ExtDOCX:
		return extractDOCX(data)
	default:
		return "", unsupported(e)
	}
}

// ExtractFile reads and extracts the document at path.
func ExtractFile(path string) (string, error) {
	ext := filepath.Ext(path)
	if !Supported(ext) {
		return "", unsupported(normalizeExt(ext))
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("docs: reading %s: %w", path, err)
	}
	return Extract(data, ext)
}

func unsupported(ext string) error {
	if ext == "" || ext == "." {
		ext = "(none)"
	}
	return fmt.Errorf("%w: %s. Supported types: %s", ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions(), ", "))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// decodeText reads data as UTF-8, or as ISO-8859-1 when it is not valid UTF-8.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(out), nil
}
