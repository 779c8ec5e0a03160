package weaviate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"paperchat/src/core/rag"
)

// chunkFields lists the stored properties a hybrid query returns alongside
// the ranking metadata.
var chunkFields = []graphql.Field{
	{Name: "text"},
	{Name: "document_name"},
	{Name: "ordinal"},
	{Name: "total_chunks"},
	{Name: "source"},
	{Name: "_additional { score }"},
}

// HybridSearch runs one fused keyword and vector query against the class
// backing name. The engine ranks with relative score fusion weighted by the
// store's alpha. A missing index yields no results rather than an error.
func (s *Store) HybridSearch(ctx context.Context, name, query string, vector []float32, topK int) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	class := ClassName(name)

	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithVector(vector).
		WithAlpha(s.alpha)

	result, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(chunkFields...).
		WithHybrid(hybrid).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, &rag.StoreUnavailableError{Err: err}
	}
	if len(result.Errors) > 0 {
		if isMissingClass(result.Errors) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to run hybrid query on %s: %s", class, graphqlErrors(result.Errors))
	}

	return parseHits(result, class), nil
}

func parseHits(result *models.GraphQLResponse, class string) []rag.SearchResult {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := data[class].([]interface{})
	if !ok {
		return nil
	}

	hits := make([]rag.SearchResult, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		hit := rag.SearchResult{
			Text:         stringProp(obj, "text"),
			DocumentName: stringProp(obj, "document_name"),
			Source:       stringProp(obj, "source"),
			Ordinal:      intProp(obj, "ordinal"),
			TotalChunks:  intProp(obj, "total_chunks"),
		}
		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			hit.Score = parseScore(additional["score"])
		}
		hits = append(hits, hit)
	}
	return hits
}

func stringProp(obj map[string]interface{}, key string) string {
	v, _ := obj[key].(string)
	return v
}

func intProp(obj map[string]interface{}, key string) int {
	v, _ := obj[key].(float64)
	return int(v)
}

// parseScore tolerates both encodings Weaviate has used for the hybrid
// score: a JSON number and a string-wrapped decimal.
func parseScore(v interface{}) float64 {
	switch score := v.(type) {
	case float64:
		return score
	case string:
		parsed, err := strconv.ParseFloat(score, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// isMissingClass detects the GraphQL error Weaviate answers with when a Get
// query names a class that does not exist.
func isMissingClass(errs []*models.GraphQLError) bool {
	for _, e := range errs {
		if e != nil && strings.Contains(e.Message, "Cannot query field") {
			return true
		}
	}
	return false
}

func graphqlErrors(errs []*models.GraphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}
