package rag

import (
	"context"
	"fmt"
)

// SearchService answers hybrid queries: it embeds the query text and hands
// both the text and the vector to the document store, which ranks by the
// combined lexical/vector score.
type SearchService struct {
	store    DocumentStore
	embedder EmbeddingProvider
}

func NewSearchService(store DocumentStore, embedder EmbeddingProvider) *SearchService {
	return &SearchService{
		store:    store,
		embedder: embedder,
	}
}

// Prepare loads the embedding model ahead of the first query. Search calls
// it as well, so Prepare is only needed when the caller wants the load cost
// paid up front (session start).
func (s *SearchService) Prepare(ctx context.Context) error {
	return s.embedder.Load(ctx)
}

// Search embeds query and returns the topK hybrid matches from the named
// index. No matches, and likewise a missing index, is an empty result, not
// an error.
func (s *SearchService) Search(ctx context.Context, indexName, query string, topK int) ([]SearchResult, error) {
	if err := s.embedder.Load(ctx); err != nil {
		return nil, err
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return s.store.HybridSearch(ctx, indexName, query, vectors[0], topK)
}
