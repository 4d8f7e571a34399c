package query

import (
	"context"

	"github.com/docsage/docsage/internal/domain"
)

// Retriever searches the internal document index.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
}

// WebSearcher searches the live web and returns structured results.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]domain.WebResult, error)
}

// Generator synthesizes an answer grounded in the supplied passages.
type Generator interface {
	Generate(ctx context.Context, query string, passages []string) (string, error)
}
