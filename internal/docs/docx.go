package docs

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// documentPart is the main body part of a .docx package.
const documentPart = "word/document.xml"

// maxDocumentPart bounds how much of word/document.xml is read.
const maxDocumentPart = 64 << 20

// extractDOCX returns the non-empty body paragraphs, trimmed, then every
// top-level table row whose non-empty cells are joined by " | ".
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("%w: missing %s", ErrMalformed, documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer func() { _ = rc.Close() }()

	paras, rows, err := walkBody(io.LimitReader(rc, maxDocumentPart))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	lines := make([]string, 0, len(paras)+len(rows))
	for _, p := range paras {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	for _, row := range rows {
		var cells []string
		for _, c := range row {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " | "))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// walkBody streams document.xml and collects the text of paragraphs outside
// tables and the cell texts of top-level tables. Nested tables are skipped.
// A cell's paragraphs are joined with newlines.
func walkBody(r io.Reader) (paras []string, rows [][]string, err error) {
	dec := xml.NewDecoder(r)

	var (
		tblDepth  int
		inRun     bool
		inText    bool
		para      strings.Builder
		cellParas []string
		row       []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return paras, rows, nil
		}
		if err != nil {
			return nil, nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					cellParas = nil
				}
			case "p":
				para.Reset()
			case "r":
				inRun = true
			case "t":
				inText = inRun
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				inRun = false
			case "p":
				switch tblDepth {
				case 0:
					paras = append(paras, para.String())
				case 1:
					cellParas = append(cellParas, para.String())
				}
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.Join(cellParas, "\n"))
				}
			case "tr":
				if tblDepth == 1 {
					rows = append(rows, row)
				}
			case "tbl":
				tblDepth--
			}
		}
	}
}
