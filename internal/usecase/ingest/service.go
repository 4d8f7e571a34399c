// Package ingest turns uploaded PDFs into indexed document chunks.
package ingest

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/chunker"
	"github.com/docsage/docsage/internal/metrics"
)

// Service runs the ingestion pipeline: extract pages, chunk, store.
type Service struct {
	parser  Parser
	chunker *chunker.Chunker
	store   DocumentWriter
	logger  *zap.Logger
}

// New creates an ingestion service.
func New(parser Parser, c *chunker.Chunker, store DocumentWriter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{parser: parser, chunker: c, store: store, logger: logger}
}

// FromPDF ingests one PDF and returns the number of chunks stored. A document
// with no extractable text yields zero chunks and no error.
func (s *Service) FromPDF(ctx context.Context, filename string, r io.ReaderAt, size int64) (int, error) {
	pages, err := s.parser.Extract(r, size)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filename, err)
	}

	chunks := s.chunker.Split(pages, filename)
	if len(chunks) == 0 {
		s.logger.Warn("no extractable text in document", zap.String("filename", filename))
		return 0, nil
	}

	if err := s.store.AddDocuments(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store %s: %w", filename, err)
	}

	metrics.IngestedChunksTotal.Add(float64(len(chunks)))
	s.logger.Info("document ingested",
		zap.String("filename", filename),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}
