package rag

import (
	"context"
	"io"
)

// Extractor converts one PDF file into its text content.
type Extractor interface {
	// Extract reads the file at path and returns its text in page order.
	Extract(ctx context.Context, path string) (string, error)
}

// Chunker splits extracted text into overlapping passages. Implementations
// validate their size/overlap configuration at construction time, so Split
// cannot fail.
type Chunker interface {
	Split(text string) []string
}

// EmbeddingProvider maps text to fixed-length vectors. Queries and document
// chunks share one vector space, which is what makes similarity search
// against indexed chunks meaningful.
type EmbeddingProvider interface {
	// Load performs the one-time model initialization and caches the
	// reported dimensionality. Calling it again is a no-op.
	Load(ctx context.Context) error
	// Embed returns one vector per input text, each of Dimensions() length.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the vector length after a successful Load.
	Dimensions() int
}

// LanguageModel generates streamed completions.
type LanguageModel interface {
	// EnsureAvailable verifies the configured model is present in the
	// runtime, pulling it if missing. Failure means a session cannot start.
	EnsureAvailable(ctx context.Context) error
	// Generate streams the completion for prompt, invoking onFragment for
	// each produced fragment, and returns the assembled response. A nil
	// onFragment is allowed. Cancelling ctx or returning an error from
	// onFragment abandons the in-flight request.
	Generate(ctx context.Context, prompt string, temperature float64, onFragment func(fragment string) error) (string, error)
}

// ModelRuntime lists the models installed in the local runtime. Split from
// LanguageModel so health checks can probe availability without pulling.
type ModelRuntime interface {
	Models(ctx context.Context) ([]ModelInfo, error)
}

// DocumentStore is the hybrid lexical/vector index holding chunk records.
// Implementations translate these operations onto one engine; the fusion
// formula of HybridSearch is backend-specific but deterministic and
// documented on the implementation.
type DocumentStore interface {
	// EnsureIndex idempotently creates the named index with a text field, a
	// vector field of dims dimensions and the chunk metadata fields. An
	// existing compatible index is a no-op; an incompatible one is a
	// *SchemaMismatchError.
	EnsureIndex(ctx context.Context, name string, dims int) error
	// BulkIndex inserts chunks and reports per-record outcomes. Partial
	// success is a valid result, never escalated to total failure.
	BulkIndex(ctx context.Context, name string, chunks []Chunk) (BulkResult, error)
	// HybridSearch returns the topK chunks ranked by combined lexical and
	// vector relevance. A missing or empty index yields an empty slice and
	// no error.
	HybridSearch(ctx context.Context, name, query string, vector []float32, topK int) ([]SearchResult, error)
	// DeleteByDocumentName removes every chunk owned by documentName and
	// returns the count removed; zero is a valid outcome.
	DeleteByDocumentName(ctx context.Context, name, documentName string) (int, error)
	// DeleteIndex irreversibly drops the named index.
	DeleteIndex(ctx context.Context, name string) error
	// ListIndices enumerates indices for the management view.
	ListIndices(ctx context.Context) ([]IndexInfo, error)
	// Health reports engine reachability and identity.
	Health(ctx context.Context) (StoreInfo, error)
}

// Archive retains a copy of every uploaded document, keyed by filename.
type Archive interface {
	// Store writes the document and returns its location in the archive.
	Store(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
	// List enumerates retained documents, newest first.
	List(ctx context.Context) ([]ArchivedDocument, error)
	// Remove deletes the retained copy; removing an absent file is not an
	// error.
	Remove(ctx context.Context, filename string) error
	// Health reports whether the archive location is usable.
	Health(ctx context.Context) error
}
