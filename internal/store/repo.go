package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/domain"
)

// Repository performs hybrid search and document insertion against one
// collection through a Conn. All operations on an offline handle are no-ops
// returning empty results, so the rest of the system degrades instead of
// failing when the store is down.
type Repository struct {
	conn         *Conn
	collection   string
	embeddingKey string
	logger       *zap.Logger

	createMu sync.Mutex
}

// NewRepository creates a retrieval adapter bound to a collection. The
// embedding key selects the collection vectorizer when it has to be created.
func NewRepository(conn *Conn, collection, embeddingKey string, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		conn:         conn,
		collection:   collection,
		embeddingKey: embeddingKey,
		logger:       logger,
	}
}

// Search runs a hybrid (vector + keyword) query and returns at most limit
// relevance-ordered results. A missing collection yields an empty result, not
// an error; the absence is established by an explicit existence check rather
// than by sniffing error messages.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if !r.conn.Online() {
		r.logger.Debug("offline store, returning empty search results")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	exists, err := r.conn.client.Schema().ClassExistenceChecker().
		WithClassName(r.collection).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", r.collection, err)
	}
	if !exists {
		return nil, nil
	}

	props, err := r.propertyNames(ctx)
	if err != nil {
		return nil, err
	}

	fields := make([]graphql.Field, 0, len(props)+1)
	for _, p := range props {
		fields = append(fields, graphql.Field{Name: p})
	}
	fields = append(fields, graphql.Field{
		Name:   "_additional",
		Fields: []graphql.Field{{Name: "distance"}},
	})

	hybrid := r.conn.client.GraphQL().HybridArgumentBuilder().WithQuery(query)

	resp, err := r.conn.client.GraphQL().Get().
		WithClassName(r.collection).
		WithFields(fields...).
		WithHybrid(hybrid).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("hybrid search: %s", resp.Errors[0].Message)
	}

	return parseHits(resp.Data, r.collection), nil
}

// AddDocuments inserts documents in one batched write. Each object gets a
// deterministic identity derived from its content, so re-ingesting the same
// document never creates a duplicate entry. The target collection is created
// on first use.
func (r *Repository) AddDocuments(ctx context.Context, docs []domain.Document) error {
	if !r.conn.Online() {
		r.logger.Debug("offline store, skipping document add")
		return nil
	}
	if len(docs) == 0 {
		return nil
	}

	if err := r.EnsureCollection(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	objects := make([]*models.Object, 0, len(docs))
	for _, doc := range docs {
		props := make(map[string]interface{}, len(doc.Metadata)+1)
		props[domain.TextKey] = doc.Text
		for k, v := range doc.Metadata {
			if k == domain.TextKey {
				continue
			}
			props[k] = v
		}
		objects = append(objects, &models.Object{
			Class:      r.collection,
			ID:         strfmt.UUID(deterministicID(props)),
			Properties: props,
		})
	}

	resp, err := r.conn.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert: %s", item.Result.Errors.Error[0].Message)
		}
	}

	r.logger.Info("documents stored",
		zap.Int("count", len(objects)),
		zap.String("collection", r.collection),
	)
	return nil
}

// EnsureCollection creates the collection if it does not exist yet. Creation
// is serialized within the process; a creation lost to a concurrent process is
// resolved by re-checking existence instead of inspecting the error text.
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if !r.conn.Online() {
		return nil
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	checker := r.conn.client.Schema().ClassExistenceChecker().WithClassName(r.collection)
	exists, err := checker.Do(ctx)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", r.collection, err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      r.collection,
		Vectorizer: "none",
		Properties: []*models.Property{{
			Name:        domain.TextKey,
			DataType:    []string{"text"},
			Description: "Document text content",
		}},
	}
	if r.embeddingKey != "" {
		class.Vectorizer = "text2vec-openai"
		class.ModuleConfig = map[string]interface{}{
			"text2vec-openai": map[string]interface{}{
				"model": "text-embedding-3-large",
				"type":  "text",
			},
		}
	}

	if err := r.conn.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		if exists, checkErr := checker.Do(ctx); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create collection %s: %w", r.collection, err)
	}

	r.logger.Info("collection created",
		zap.String("collection", r.collection),
		zap.String("vectorizer", class.Vectorizer),
	)
	return nil
}

// Status reports store health. Schema and count are probed independently so a
// single failing probe does not hide the other's result.
func (r *Repository) Status(ctx context.Context) domain.StoreStatus {
	status := domain.StoreStatus{Collection: r.collection}

	if !r.conn.Online() {
		status.Message = "store client unavailable (offline mode)"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	exists, err := r.conn.client.Schema().ClassExistenceChecker().
		WithClassName(r.collection).
		Do(ctx)
	if err != nil {
		status.Message = fmt.Sprintf("unable to access collection: %v", err)
		return status
	}

	status.Online = true
	if !exists {
		status.Message = "collection does not exist yet"
		return status
	}

	if class, err := r.conn.client.Schema().ClassGetter().WithClassName(r.collection).Do(ctx); err != nil {
		status.SchemaError = err.Error()
	} else {
		schema := &domain.StoreSchema{Name: class.Class, Vectorizer: class.Vectorizer}
		for _, p := range class.Properties {
			schema.Properties = append(schema.Properties, p.Name)
		}
		status.Schema = schema
	}

	if count, err := r.objectCount(ctx); err != nil {
		status.CountError = err.Error()
	} else {
		status.ObjectCount = &count
	}

	return status
}

// ListObjects returns up to limit recently stored objects. Any failure is
// logged and yields an empty sequence rather than propagating.
func (r *Repository) ListObjects(ctx context.Context, limit int) []domain.StoredObject {
	if !r.conn.Online() {
		r.logger.Debug("offline store, cannot list objects")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	objs, err := r.conn.client.Data().ObjectsGetter().
		WithClassName(r.collection).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		r.logger.Error("error fetching objects from store", zap.Error(err))
		return nil
	}

	items := make([]domain.StoredObject, 0, len(objs))
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		entry := domain.StoredObject{
			ID:       obj.ID.String(),
			Metadata: map[string]string{},
		}
		if props, ok := obj.Properties.(map[string]interface{}); ok {
			for k, v := range props {
				if k == domain.TextKey {
					entry.Text, _ = v.(string)
					continue
				}
				entry.Metadata[k] = fmt.Sprint(v)
			}
		}
		if obj.CreationTimeUnix > 0 {
			t := time.UnixMilli(obj.CreationTimeUnix).UTC()
			entry.Created = &t
		}
		if obj.LastUpdateTimeUnix > 0 {
			t := time.UnixMilli(obj.LastUpdateTimeUnix).UTC()
			entry.Updated = &t
		}
		items = append(items, entry)
	}
	return items
}

// Collection returns the bound collection name.
func (r *Repository) Collection() string { return r.collection }

// propertyNames reads the collection schema to learn which properties to
// request, since stored metadata fields are caller-defined.
func (r *Repository) propertyNames(ctx context.Context) ([]string, error) {
	class, err := r.conn.client.Schema().ClassGetter().WithClassName(r.collection).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get collection schema: %w", err)
	}
	names := make([]string, 0, len(class.Properties))
	for _, p := range class.Properties {
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		names = []string{domain.TextKey}
	}
	return names, nil
}

func (r *Repository) objectCount(ctx context.Context) (int, error) {
	resp, err := r.conn.client.GraphQL().Aggregate().
		WithClassName(r.collection).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("aggregate count: %w", err)
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("aggregate count: %s", resp.Errors[0].Message)
	}

	agg, ok := resp.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate count: unexpected response shape")
	}
	rows, ok := agg[r.collection].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate count: unexpected row shape")
	}
	meta, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate count: missing meta")
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("aggregate count: missing count")
	}
	return int(count), nil
}

// parseHits converts a GraphQL Get response into search results, folding every
// non-reserved property into metadata.
func parseHits(data map[string]models.JSONObject, class string) []domain.SearchResult {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := get[class].([]interface{})
	if !ok {
		return nil
	}

	results := make([]domain.SearchResult, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		res := domain.SearchResult{Metadata: map[string]string{}}
		for k, v := range obj {
			switch k {
			case "_additional":
				if add, ok := v.(map[string]interface{}); ok {
					if d, ok := add["distance"].(float64); ok {
						dist := d
						res.Distance = &dist
					}
				}
			case domain.TextKey:
				res.Text, _ = v.(string)
			default:
				if v == nil {
					continue
				}
				if s, ok := v.(string); ok {
					res.Metadata[k] = s
				} else {
					res.Metadata[k] = fmt.Sprint(v)
				}
			}
		}
		results = append(results, res)
	}
	return results
}

// deterministicID derives a UUIDv5 from the canonical JSON serialization of
// the object properties, mirroring the store's generate-uuid5 convention.
// Identical content always maps to the same stored identity.
func deterministicID(props map[string]interface{}) string {
	data, err := json.Marshal(props)
	if err != nil {
		// Properties are plain strings; marshaling cannot realistically fail.
		return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(fmt.Sprint(props))).String()
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, data).String()
}
