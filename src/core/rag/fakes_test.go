package rag_test

import (
	"context"
	"io"
	"strings"

	"paperchat/src/core/rag"
)

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// sliceChunker splits on "|" so tests control chunk boundaries exactly.
type sliceChunker struct{}

func (sliceChunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "|")
}

type fakeEmbedder struct {
	dims      int
	loadErr   error
	embedErr  error
	loadCalls int
}

func (f *fakeEmbedder) Load(ctx context.Context) error {
	f.loadCalls++
	return f.loadErr
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), float32(i)}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

type fakeStore struct {
	ensureErr  error
	bulkResult *rag.BulkResult
	bulkErr    error
	hits       []rag.SearchResult
	searchErr  error
	deleted    int
	deleteErr  error
	healthErr  error

	calls       []string
	ensuredDims int
	indexed     []rag.Chunk
	query       string
	vector      []float32
	topK        int
}

func (f *fakeStore) EnsureIndex(ctx context.Context, name string, dims int) error {
	f.calls = append(f.calls, "ensure")
	f.ensuredDims = dims
	return f.ensureErr
}

func (f *fakeStore) BulkIndex(ctx context.Context, name string, chunks []rag.Chunk) (rag.BulkResult, error) {
	f.calls = append(f.calls, "bulk")
	f.indexed = chunks
	if f.bulkErr != nil {
		return rag.BulkResult{}, f.bulkErr
	}
	if f.bulkResult != nil {
		return *f.bulkResult, nil
	}
	return rag.BulkResult{Indexed: len(chunks)}, nil
}

func (f *fakeStore) HybridSearch(ctx context.Context, name, query string, vector []float32, topK int) ([]rag.SearchResult, error) {
	f.calls = append(f.calls, "search")
	f.query = query
	f.vector = vector
	f.topK = topK
	return f.hits, f.searchErr
}

func (f *fakeStore) DeleteByDocumentName(ctx context.Context, name, documentName string) (int, error) {
	f.calls = append(f.calls, "delete "+documentName)
	return f.deleted, f.deleteErr
}

func (f *fakeStore) DeleteIndex(ctx context.Context, name string) error {
	f.calls = append(f.calls, "drop "+name)
	return nil
}

func (f *fakeStore) ListIndices(ctx context.Context) ([]rag.IndexInfo, error) {
	return nil, nil
}

func (f *fakeStore) Health(ctx context.Context) (rag.StoreInfo, error) {
	if f.healthErr != nil {
		return rag.StoreInfo{}, f.healthErr
	}
	return rag.StoreInfo{Engine: "fake", Version: "1.0.0"}, nil
}

type fakeArchive struct {
	storeErr  error
	healthErr error
	stored    []string
}

func (f *fakeArchive) Store(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	f.stored = append(f.stored, filename)
	return "uploaded_files/" + filename, nil
}

func (f *fakeArchive) List(ctx context.Context) ([]rag.ArchivedDocument, error) {
	return nil, nil
}

func (f *fakeArchive) Remove(ctx context.Context, filename string) error { return nil }

func (f *fakeArchive) Health(ctx context.Context) error { return f.healthErr }

type fakeLLM struct {
	fragments []string
	ensureErr error
	genErr    error

	prompts []string
	temps   []float64
}

func (f *fakeLLM) EnsureAvailable(ctx context.Context) error { return f.ensureErr }

func (f *fakeLLM) Generate(ctx context.Context, prompt string, temperature float64, onFragment func(string) error) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.temps = append(f.temps, temperature)
	if f.genErr != nil {
		return "", f.genErr
	}
	var sb strings.Builder
	for _, frag := range f.fragments {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if onFragment != nil {
			if err := onFragment(frag); err != nil {
				return "", err
			}
		}
		sb.WriteString(frag)
	}
	return sb.String(), nil
}

type fakeRuntime struct {
	models []rag.ModelInfo
	err    error
}

func (f *fakeRuntime) Models(ctx context.Context) ([]rag.ModelInfo, error) {
	return f.models, f.err
}
