package ingest

import (
	"context"
	"io"

	"github.com/docsage/docsage/internal/domain"
)

// Parser extracts per-page text from an uploaded document.
type Parser interface {
	Extract(r io.ReaderAt, size int64) ([]domain.Page, error)
}

// DocumentWriter stores chunked documents in the index.
type DocumentWriter interface {
	AddDocuments(ctx context.Context, docs []domain.Document) error
}
