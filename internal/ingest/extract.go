package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// ExtractText returns the text of f. PDFs are read page by page; anything
// else must be UTF-8 text.
func ExtractText(f File) (string, error) {
	if strings.EqualFold(filepath.Ext(f.Name), ".pdf") {
		return extractPDF(f.Data)
	}
	if !utf8.Valid(f.Data) {
		return "", fmt.Errorf("%s is not UTF-8 text", f.Name)
	}
	return string(f.Data), nil
}

// extractPDF joins the plain text of every non-empty page with a newline.
// The pdf package panics on some malformed streams; that is reported as an
// error.
func extractPDF(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var b strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("reading pdf page %d: %w", i, err)
		}
		if pageText == "" {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}
