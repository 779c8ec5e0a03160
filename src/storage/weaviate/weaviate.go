// Package weaviate implements the document store on a Weaviate instance.
// Each index maps to one Weaviate class holding chunk objects with their
// embeddings attached as native vectors.
package weaviate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"paperchat/src/core/rag"
	"paperchat/src/log"
)

// DefaultAlpha balances hybrid ranking between keyword and vector scores.
// Weaviate blends both natively: 0 is pure BM25, 1 is pure vector.
const DefaultAlpha float32 = 0.75

// Store is a document store backed by Weaviate. Hybrid ranking uses the
// engine's relative score fusion, so results come back already ordered and
// no client-side merging happens.
type Store struct {
	client *weaviate.Client
	alpha  float32
}

var _ rag.DocumentStore = (*Store)(nil)

// Option adjusts a Store during construction.
type Option func(*Store)

// WithAlpha overrides the hybrid fusion weight.
func WithAlpha(alpha float32) Option {
	return func(s *Store) {
		s.alpha = alpha
	}
}

// NewStore connects to the Weaviate instance at host using the given scheme.
func NewStore(host, scheme string, opts ...Option) (*Store, error) {
	if host == "" {
		return nil, &rag.ConfigurationError{Field: "weaviate.url", Reason: "must not be empty"}
	}
	if scheme == "" {
		scheme = "http"
	}
	s := &Store{alpha: DefaultAlpha}
	for _, opt := range opts {
		opt(s)
	}
	if s.alpha < 0 || s.alpha > 1 {
		return nil, &rag.ConfigurationError{Field: "weaviate.alpha", Reason: "must be between 0 and 1"}
	}
	s.client = weaviate.New(weaviate.Config{
		Host:   host,
		Scheme: scheme,
	})
	return s, nil
}

// ClassName maps an index name onto the Weaviate class backing it. Weaviate
// requires class names to start with an uppercase letter, so the first rune
// is capitalized. IndexName reverses the mapping.
func ClassName(index string) string {
	if index == "" {
		return ""
	}
	runes := []rune(index)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// IndexName maps a Weaviate class name back onto the index name it serves.
func IndexName(class string) string {
	if class == "" {
		return ""
	}
	runes := []rune(class)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// EnsureIndex creates the class for name if it is missing, or verifies that
// an existing class matches the chunk schema. Weaviate does not declare
// vector dimensions in the schema, so dims is not checked here; a dimension
// clash surfaces as per-object errors at indexing time.
func (s *Store) EnsureIndex(ctx context.Context, name string, dims int) error {
	class := ClassName(name)
	existing, err := s.lookupClass(ctx, class)
	if err != nil {
		return &rag.StoreUnavailableError{Err: err}
	}
	if existing != nil {
		return verifyClass(name, existing)
	}

	err = s.client.Schema().ClassCreator().WithClass(newChunkClass(class)).Do(ctx)
	if err != nil {
		// Another writer may have created the class between the lookup
		// and the create call.
		if strings.Contains(err.Error(), "already exists") {
			existing, lookupErr := s.lookupClass(ctx, class)
			if lookupErr != nil {
				return &rag.StoreUnavailableError{Err: lookupErr}
			}
			if existing != nil {
				return verifyClass(name, existing)
			}
		}
		return fmt.Errorf("failed to create class %s: %w", class, err)
	}

	log.Info("created class", "index", name, "class", class)
	return nil
}

func newChunkClass(class string) *models.Class {
	return &models.Class{
		Class:      class,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "document_name", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "ordinal", DataType: []string{"int"}},
			{Name: "total_chunks", DataType: []string{"int"}},
			{Name: "source", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "ingested_at", DataType: []string{"date"}},
		},
	}
}

// verifyClass checks that an existing class can hold chunk objects.
func verifyClass(index string, class *models.Class) error {
	if class.Vectorizer != "none" {
		return &rag.SchemaMismatchError{
			Index:  index,
			Reason: fmt.Sprintf("class uses vectorizer %s, want none", class.Vectorizer),
		}
	}

	types := make(map[string]string, len(class.Properties))
	for _, prop := range class.Properties {
		if prop == nil || len(prop.DataType) == 0 {
			continue
		}
		types[prop.Name] = prop.DataType[0]
	}
	required := []struct {
		name     string
		dataType string
	}{
		{"text", "text"},
		{"document_name", "text"},
		{"ordinal", "int"},
		{"total_chunks", "int"},
		{"source", "text"},
	}
	for _, want := range required {
		got, ok := types[want.name]
		if !ok {
			return &rag.SchemaMismatchError{
				Index:  index,
				Reason: fmt.Sprintf("missing property %s", want.name),
			}
		}
		if got != want.dataType {
			return &rag.SchemaMismatchError{
				Index:  index,
				Reason: fmt.Sprintf("property %s has type %s, want %s", want.name, got, want.dataType),
			}
		}
	}
	return nil
}

// BulkIndex writes chunks into the class backing name in one batch call.
// Objects the engine rejects are reported per chunk instead of failing the
// whole run.
func (s *Store) BulkIndex(ctx context.Context, name string, chunks []rag.Chunk) (rag.BulkResult, error) {
	var result rag.BulkResult
	if len(chunks) == 0 {
		return result, nil
	}

	class := ClassName(name)
	now := time.Now().UTC().Format(time.RFC3339)
	objs := make([]*models.Object, 0, len(chunks))
	for _, chunk := range chunks {
		objs = append(objs, &models.Object{
			Class:  class,
			Vector: chunk.Embedding,
			Properties: map[string]interface{}{
				"text":          chunk.Text,
				"document_name": chunk.DocumentName,
				"ordinal":       chunk.Ordinal,
				"total_chunks":  chunk.TotalChunks,
				"source":        chunk.Source,
				"ingested_at":   now,
			},
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return result, &rag.StoreUnavailableError{Err: err}
	}
	if len(resp) == 0 {
		return result, fmt.Errorf("failed to batch objects into %s: empty response", class)
	}

	// The engine answers in submission order, so response i maps to
	// chunks[i].
	for i, obj := range resp {
		if reason := objectError(obj); reason != "" {
			ordinal := i
			if i < len(chunks) {
				ordinal = chunks[i].Ordinal
			}
			result.Failed = append(result.Failed, rag.ChunkFailure{Ordinal: ordinal, Reason: reason})
			continue
		}
		result.Indexed++
	}
	if len(result.Failed) > 0 {
		log.Info("batch run rejected chunks", "index", name, "failed", len(result.Failed), "indexed", result.Indexed)
	}
	return result, nil
}

func objectError(obj models.ObjectsGetResponse) string {
	if obj.Result == nil || obj.Result.Errors == nil {
		return ""
	}
	var msgs []string
	for _, item := range obj.Result.Errors.Error {
		if item != nil && item.Message != "" {
			msgs = append(msgs, item.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// DeleteByDocumentName removes every chunk of the named document from the
// index and returns how many objects were deleted. A missing index deletes
// nothing.
func (s *Store) DeleteByDocumentName(ctx context.Context, name, documentName string) (int, error) {
	class := ClassName(name)
	existing, err := s.lookupClass(ctx, class)
	if err != nil {
		return 0, &rag.StoreUnavailableError{Err: err}
	}
	if existing == nil {
		return 0, nil
	}

	where := filters.Where().
		WithPath([]string{"document_name"}).
		WithOperator(filters.Equal).
		WithValueText(documentName)
	resp, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(class).
		WithOutput("minimal").
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks of %s: %w", documentName, err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	return int(resp.Results.Successful), nil
}

// DeleteIndex drops the class backing name along with every object in it.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	class := ClassName(name)
	existing, err := s.lookupClass(ctx, class)
	if err != nil {
		return &rag.StoreUnavailableError{Err: err}
	}
	if existing == nil {
		return fmt.Errorf("index %s does not exist", name)
	}

	if err := s.client.Schema().ClassDeleter().WithClassName(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", class, err)
	}
	log.Info("deleted index", "index", name, "class", class)
	return nil
}

// ListIndices reports every class in the instance with its object count.
// Weaviate does not expose per-class disk usage through the client API.
func (s *Store) ListIndices(ctx context.Context) ([]rag.IndexInfo, error) {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, &rag.StoreUnavailableError{Err: err}
	}

	infos := make([]rag.IndexInfo, 0, len(schema.Classes))
	for _, class := range schema.Classes {
		if class == nil {
			continue
		}
		count, err := s.objectCount(ctx, class.Class)
		if err != nil {
			return nil, err
		}
		infos = append(infos, rag.IndexInfo{
			Name:     IndexName(class.Class),
			DocCount: count,
			Size:     "n/a",
			Health:   "ok",
		})
	}
	return infos, nil
}

func (s *Store) objectCount(ctx context.Context, class string) (int64, error) {
	meta := graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}
	result, err := s.client.GraphQL().Aggregate().WithClassName(class).WithFields(meta).Do(ctx)
	if err != nil {
		return 0, &rag.StoreUnavailableError{Err: err}
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("failed to count objects in %s: %s", class, graphqlErrors(result.Errors))
	}

	agg, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[class].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	counts, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := counts["count"].(float64)
	return int64(count), nil
}

// Health reports the engine version and hostname of the instance.
func (s *Store) Health(ctx context.Context) (rag.StoreInfo, error) {
	meta, err := s.client.Misc().MetaGetter().Do(ctx)
	if err != nil {
		return rag.StoreInfo{}, &rag.StoreUnavailableError{Err: err}
	}
	return rag.StoreInfo{
		Engine:      "weaviate",
		Version:     meta.Version,
		ClusterName: meta.Hostname,
	}, nil
}

// lookupClass returns the class definition, or nil when no class with that
// name exists.
func (s *Store) lookupClass(ctx context.Context, class string) (*models.Class, error) {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range schema.Classes {
		if c != nil && c.Class == class {
			return c, nil
		}
	}
	return nil, nil
}
