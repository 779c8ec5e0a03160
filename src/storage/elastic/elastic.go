// Package elastic implements the document store on Elasticsearch using the
// low-level esapi request types.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"paperchat/src/core/rag"
	"paperchat/src/log"
)

const (
	DefaultLexicalWeight = 0.5
	DefaultVectorWeight  = 0.5
)

// Store ranks hybrid queries by weighted sum: the lexical match query and
// the kNN vector query each carry their weight as a boost, and the engine
// adds the two scores. A chunk matching both signals outranks a chunk
// matching one. Ties keep insertion order.
type Store struct {
	client        *elasticsearch.Client
	lexicalWeight float64
	vectorWeight  float64
}

var _ rag.DocumentStore = (*Store)(nil)

type Option func(*Store)

// WithWeights overrides the score weights of the two hybrid legs.
func WithWeights(lexical, vector float64) Option {
	return func(s *Store) {
		s.lexicalWeight = lexical
		s.vectorWeight = vector
	}
}

func NewStore(url string, opts ...Option) (*Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	s := &Store{
		client:        client,
		lexicalWeight: DefaultLexicalWeight,
		vectorWeight:  DefaultVectorWeight,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.lexicalWeight < 0 || s.vectorWeight < 0 {
		return nil, &rag.ConfigurationError{Field: "search weights", Reason: "must not be negative"}
	}
	return s, nil
}

type chunkDocument struct {
	Text         string    `json:"text"`
	Embedding    []float32 `json:"embedding"`
	DocumentName string    `json:"document_name"`
	Ordinal      int       `json:"ordinal"`
	TotalChunks  int       `json:"total_chunks"`
	Source       string    `json:"source"`
	IngestedAt   time.Time `json:"ingested_at"`
}

type fieldMapping struct {
	Type string `json:"type"`
	Dims int    `json:"dims"`
}

type indexMappings struct {
	Mappings struct {
		Properties map[string]fieldMapping `json:"properties"`
	} `json:"mappings"`
}

func (s *Store) EnsureIndex(ctx context.Context, name string, dims int) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, s.client)
	if err != nil {
		return &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return s.verifyMapping(ctx, name, dims)
	case http.StatusNotFound:
		return s.createIndex(ctx, name, dims)
	default:
		return fmt.Errorf("failed to check index %s: %s", name, res.Status())
	}
}

func (s *Store) createIndex(ctx context.Context, name string, dims int) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "text"},
				"embedding": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
				"document_name": map[string]interface{}{"type": "keyword"},
				"ordinal":       map[string]interface{}{"type": "integer"},
				"total_chunks":  map[string]interface{}{"type": "integer"},
				"source":        map[string]interface{}{"type": "keyword"},
				"ingested_at":   map[string]interface{}{"type": "date"},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal index mapping: %w", err)
	}

	res, err := esapi.IndicesCreateRequest{Index: name, Body: bytes.NewReader(body)}.Do(ctx, s.client)
	if err != nil {
		return &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		resErr := parseError(res)
		// Lost a create race; the existing index still has to match.
		if strings.Contains(resErr.Error(), "resource_already_exists_exception") {
			return s.verifyMapping(ctx, name, dims)
		}
		return fmt.Errorf("failed to create index %s: %w", name, resErr)
	}

	log.Info("created index", "index", name, "dimensions", dims)
	return nil
}

func (s *Store) verifyMapping(ctx context.Context, name string, dims int) error {
	res, err := esapi.IndicesGetMappingRequest{Index: []string{name}}.Do(ctx, s.client)
	if err != nil {
		return &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to read mapping for %s: %w", name, parseError(res))
	}

	var mappings map[string]indexMappings
	if err := json.NewDecoder(res.Body).Decode(&mappings); err != nil {
		return fmt.Errorf("failed to decode mapping for %s: %w", name, err)
	}

	var entry indexMappings
	found := false
	for _, v := range mappings {
		entry = v
		found = true
		break
	}
	if !found {
		return &rag.SchemaMismatchError{Index: name, Reason: "no mapping returned"}
	}

	props := entry.Mappings.Properties
	embedding, ok := props["embedding"]
	if !ok {
		return &rag.SchemaMismatchError{Index: name, Reason: "missing embedding field"}
	}
	if embedding.Type != "dense_vector" {
		return &rag.SchemaMismatchError{Index: name, Reason: fmt.Sprintf("embedding field has type %s, want dense_vector", embedding.Type)}
	}
	if embedding.Dims != dims {
		return &rag.SchemaMismatchError{Index: name, Reason: fmt.Sprintf("embedding field has %d dimensions, want %d", embedding.Dims, dims)}
	}
	if text, ok := props["text"]; !ok || text.Type != "text" {
		return &rag.SchemaMismatchError{Index: name, Reason: "text field missing or not full-text"}
	}
	if docName, ok := props["document_name"]; !ok || docName.Type != "keyword" {
		return &rag.SchemaMismatchError{Index: name, Reason: "document_name field missing or not keyword"}
	}
	return nil
}

// BulkIndex writes chunks under deterministic IDs so re-ingesting the same
// document overwrites rather than duplicates. Per-record rejections come
// back in the result, never as an error.
func (s *Store) BulkIndex(ctx context.Context, name string, chunks []rag.Chunk) (rag.BulkResult, error) {
	if len(chunks) == 0 {
		return rag.BulkResult{}, nil
	}

	var buf bytes.Buffer
	now := time.Now().UTC()
	for _, chunk := range chunks {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": name,
				"_id":    chunk.ID(),
			},
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return rag.BulkResult{}, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		doc := chunkDocument{
			Text:         chunk.Text,
			Embedding:    chunk.Embedding,
			DocumentName: chunk.DocumentName,
			Ordinal:      chunk.Ordinal,
			TotalChunks:  chunk.TotalChunks,
			Source:       chunk.Source,
			IngestedAt:   now,
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return rag.BulkResult{}, fmt.Errorf("failed to encode bulk document: %w", err)
		}
	}

	res, err := esapi.BulkRequest{Body: &buf, Refresh: "true"}.Do(ctx, s.client)
	if err != nil {
		return rag.BulkResult{}, &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return rag.BulkResult{}, fmt.Errorf("bulk request failed: %w", parseError(res))
	}

	var bulkRes bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return rag.BulkResult{}, fmt.Errorf("failed to decode bulk response: %w", err)
	}

	var result rag.BulkResult
	for i, item := range bulkRes.Items {
		if item.Index.Status >= 200 && item.Index.Status < 300 {
			result.Indexed++
			continue
		}
		reason := item.Index.Error.Reason
		if item.Index.Error.Type != "" {
			reason = fmt.Sprintf("%s: %s", item.Index.Error.Type, item.Index.Error.Reason)
		}
		ordinal := i
		if i < len(chunks) {
			ordinal = chunks[i].Ordinal
		}
		result.Failed = append(result.Failed, rag.ChunkFailure{Ordinal: ordinal, Reason: reason})
	}

	if len(result.Failed) > 0 {
		log.Info("bulk indexing completed with failures",
			"index", name,
			"indexed", result.Indexed,
			"failed", len(result.Failed),
		)
	}
	return result, nil
}

func (s *Store) HybridSearch(ctx context.Context, name, query string, vector []float32, topK int) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	body := map[string]interface{}{
		"size": topK,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"text": map[string]interface{}{
					"query": query,
					"boost": s.lexicalWeight,
				},
			},
		},
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": numCandidates(topK),
			"boost":          s.vectorWeight,
		},
		"_source": []string{"text", "document_name", "ordinal", "total_chunks", "source"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	res, err := esapi.SearchRequest{Index: []string{name}, Body: bytes.NewReader(payload)}.Do(ctx, s.client)
	if err != nil {
		return nil, &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search request failed: %w", parseError(res))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]rag.SearchResult, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		results = append(results, rag.SearchResult{
			DocumentName: hit.Source.DocumentName,
			Ordinal:      hit.Source.Ordinal,
			TotalChunks:  hit.Source.TotalChunks,
			Text:         hit.Source.Text,
			Source:       hit.Source.Source,
			Score:        hit.Score,
		})
	}

	// Stable: hits with equal scores keep the engine's order.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func numCandidates(topK int) int {
	n := topK * 10
	if n < 50 {
		n = 50
	}
	return n
}

func (s *Store) DeleteByDocumentName(ctx context.Context, name, documentName string) (int, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"document_name": documentName,
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal delete query: %w", err)
	}

	res, err := esapi.DeleteByQueryRequest{
		Index:   []string{name},
		Body:    bytes.NewReader(payload),
		Refresh: esapi.BoolPtr(true),
	}.Do(ctx, s.client)
	if err != nil {
		return 0, &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("delete by query failed: %w", parseError(res))
	}

	var dr struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&dr); err != nil {
		return 0, fmt.Errorf("failed to decode delete response: %w", err)
	}
	return dr.Deleted, nil
}

func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	res, err := esapi.IndicesDeleteRequest{Index: []string{name}}.Do(ctx, s.client)
	if err != nil {
		return &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("index %s does not exist", name)
	}
	if res.IsError() {
		return fmt.Errorf("failed to delete index %s: %w", name, parseError(res))
	}

	log.Info("deleted index", "index", name)
	return nil
}

func (s *Store) ListIndices(ctx context.Context) ([]rag.IndexInfo, error) {
	res, err := esapi.CatIndicesRequest{Format: "json"}.Do(ctx, s.client)
	if err != nil {
		return nil, &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("failed to list indices: %w", parseError(res))
	}

	var rows []struct {
		Index     string `json:"index"`
		Health    string `json:"health"`
		DocsCount string `json:"docs.count"`
		StoreSize string `json:"store.size"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode indices listing: %w", err)
	}

	infos := make([]rag.IndexInfo, 0, len(rows))
	for _, row := range rows {
		count, _ := strconv.ParseInt(row.DocsCount, 10, 64)
		infos = append(infos, rag.IndexInfo{
			Name:     row.Index,
			DocCount: count,
			Size:     row.StoreSize,
			Health:   row.Health,
		})
	}
	return infos, nil
}

func (s *Store) Health(ctx context.Context) (rag.StoreInfo, error) {
	res, err := esapi.InfoRequest{}.Do(ctx, s.client)
	if err != nil {
		return rag.StoreInfo{}, &rag.StoreUnavailableError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return rag.StoreInfo{}, fmt.Errorf("info request failed: %w", parseError(res))
	}

	var info struct {
		ClusterName string `json:"cluster_name"`
		Version     struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return rag.StoreInfo{}, fmt.Errorf("failed to decode info response: %w", err)
	}

	return rag.StoreInfo{
		Engine:      "elasticsearch",
		Version:     info.Version.Number,
		ClusterName: info.ClusterName,
	}, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Text         string `json:"text"`
				DocumentName string `json:"document_name"`
				Ordinal      int    `json:"ordinal"`
				TotalChunks  int    `json:"total_chunks"`
				Source       string `json:"source"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func parseError(res *esapi.Response) error {
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("elasticsearch returned %s", res.Status())
	}

	var er struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Type != "" {
		return fmt.Errorf("%s: %s", er.Error.Type, er.Error.Reason)
	}
	return fmt.Errorf("elasticsearch returned %s: %s", res.Status(), strings.TrimSpace(string(body)))
}
