// Package pdf extracts per-page plain text from PDF files for ingestion.
package pdf

import (
	"fmt"
	"io"

	ledongthuc "github.com/ledongthuc/pdf"

	"github.com/docsage/docsage/internal/domain"
)

// Parser extracts page text from PDF content.
type Parser struct{}

// NewParser creates a PDF parser.
func NewParser() *Parser {
	return &Parser{}
}

// Extract reads the PDF and returns one entry per page. Pages whose text
// extraction fails are returned with empty text rather than failing the whole
// document; a structurally unreadable file is an error.
func (p *Parser) Extract(r io.ReaderAt, size int64) ([]domain.Page, error) {
	reader, err := ledongthuc.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Scanned or malformed pages yield no text, not a hard failure.
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}
