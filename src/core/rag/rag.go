// Package rag contains the document ingestion pipeline, the hybrid search
// service and the retrieval-augmented chat engine. External collaborators
// (search engine, model runtime, document archive) are consumed through the
// interfaces in providers.go; nothing in this package speaks a wire protocol.
package rag

import (
	"strconv"
	"time"
)

// Chunk is the unit of indexing and retrieval: a bounded, overlapping text
// passage cut from one document, carrying its embedding and provenance.
type Chunk struct {
	Text         string    `json:"text"`
	Ordinal      int       `json:"ordinal"`
	TotalChunks  int       `json:"total_chunks"`
	DocumentName string    `json:"document_name"`
	Source       string    `json:"source"`
	Embedding    []float32 `json:"embedding"`
}

// ID returns the deterministic store identifier of the chunk. Re-ingesting
// the same document yields the same IDs, so a replace run cannot leave stray
// records behind.
func (c Chunk) ID() string {
	return c.DocumentName + ":" + strconv.Itoa(c.Ordinal)
}

// Message is one conversation turn held in session memory.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SearchResult is a fixed-shape ranked hit from a hybrid query. It is
// transient output, never stored.
type SearchResult struct {
	DocumentName string  `json:"document_name"`
	Ordinal      int     `json:"ordinal"`
	TotalChunks  int     `json:"total_chunks"`
	Text         string  `json:"text"`
	Source       string  `json:"source"`
	Score        float64 `json:"score"`
}

// IndexInfo describes one index for the management view.
type IndexInfo struct {
	Name     string `json:"name"`
	DocCount int64  `json:"doc_count"`
	Size     string `json:"size"`
	Health   string `json:"health"`
}

// ChunkFailure records one chunk the store rejected during a bulk run.
type ChunkFailure struct {
	Ordinal int    `json:"ordinal"`
	Reason  string `json:"reason"`
}

// BulkResult reports a bulk indexing run. Indexed plus len(Failed) equals
// the number of chunks submitted.
type BulkResult struct {
	Indexed int            `json:"indexed"`
	Failed  []ChunkFailure `json:"failed,omitempty"`
}

// ArchivedDocument is one retained upload in the document archive.
type ArchivedDocument struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// StoreInfo identifies the search engine behind the document store.
type StoreInfo struct {
	Engine      string `json:"engine"`
	Version     string `json:"version"`
	ClusterName string `json:"cluster_name,omitempty"`
}

// ModelInfo describes one model installed in the model runtime.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}
