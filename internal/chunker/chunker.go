// Package chunker splits extracted document text into overlapping fixed-size
// windows carrying provenance metadata.
package chunker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docsage/docsage/internal/domain"
)

// Chunker produces overlapping character windows over concatenated page text.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window configuration. Overlap must be strictly smaller
// than size or the window never advances.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidChunking, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidChunking, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", domain.ErrInvalidChunking, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split concatenates per-page text with inline page markers and slides a
// window of the configured size over it, advancing by size-overlap. Pages
// that are empty after trimming are skipped; an input with no extractable
// text yields an empty sequence, not an error.
//
// Each chunk's metadata records the originating source, a zero-based
// chunk_index and an estimated_page approximated from the window offset.
func (c *Chunker) Split(pages []domain.Page, source string) []domain.Document {
	var sb strings.Builder
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n\n--- Page %d ---\n\n", p.Number))
		sb.WriteString(p.Text)
	}
	full := sb.String()
	if strings.TrimSpace(full) == "" {
		return nil
	}

	var chunks []domain.Document
	index := 0
	for start := 0; start < len(full); start += c.size - c.overlap {
		end := start + c.size
		if end > len(full) {
			end = len(full)
		}
		text := strings.TrimSpace(full[start:end])
		if text != "" {
			// Approximation from the window offset, not exact page tracking.
			estimatedPage := start/c.size + 1
			chunks = append(chunks, domain.Document{
				Text: text,
				Metadata: map[string]string{
					"source":         source,
					"chunk_index":    strconv.Itoa(index),
					"estimated_page": strconv.Itoa(estimatedPage),
				},
			})
			index++
		}
	}
	return chunks
}

// Size returns the configured window size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }
