// Package index exposes store introspection: status reporting and raw object
// listing.
package index

import (
	"context"

	"github.com/docsage/docsage/internal/domain"
)

// Inspector reads store health and stored objects.
type Inspector interface {
	Status(ctx context.Context) domain.StoreStatus
	ListObjects(ctx context.Context, limit int) []domain.StoredObject
}

// Service wraps the retrieval adapter's introspection operations.
type Service struct {
	store Inspector
}

// New creates an index introspection service.
func New(store Inspector) *Service {
	return &Service{store: store}
}

// Status reports current store health; recomputed on every call.
func (s *Service) Status(ctx context.Context) domain.StoreStatus {
	return s.store.Status(ctx)
}

// Objects lists up to limit recently stored objects.
func (s *Service) Objects(ctx context.Context, limit int) []domain.StoredObject {
	return s.store.ListObjects(ctx, limit)
}
