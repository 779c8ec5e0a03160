package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"paperchat/src/log"
)

// Stage identifies one step of the ingestion pipeline. The value doubles as
// the label shown while the stage runs.
type Stage string

const (
	StageValidate    Stage = "validating file"
	StageArchive     Stage = "archiving copy"
	StageExtract     Stage = "extracting text"
	StageChunk       Stage = "chunking text"
	StageLoadModel   Stage = "loading embedding model"
	StageEmbed       Stage = "embedding chunks"
	StageAssemble    Stage = "assembling chunks"
	StageEnsureIndex Stage = "ensuring index"
	StageReplace     Stage = "replacing previous version"
	StageIndex       Stage = "indexing chunks"
)

// IngestStages lists the pipeline stages in execution order.
var IngestStages = []Stage{
	StageValidate,
	StageArchive,
	StageExtract,
	StageChunk,
	StageLoadModel,
	StageEmbed,
	StageAssemble,
	StageEnsureIndex,
	StageReplace,
	StageIndex,
}

// IngestResult summarizes a completed (or partially completed) ingestion.
type IngestResult struct {
	DocumentName string
	IndexName    string
	ArchivePath  string
	Characters   int
	Chunks       int
	Indexed      int
	Replaced     int
	Failed       []ChunkFailure
}

// Pipeline runs a PDF through extraction, chunking, embedding and indexing.
// Re-ingesting a document replaces the chunks indexed for it before.
type Pipeline struct {
	extractor Extractor
	chunker   Chunker
	embedder  EmbeddingProvider
	store     DocumentStore
	archive   Archive
	onStage   func(Stage)
}

type PipelineOption func(*Pipeline)

// WithStageCallback registers fn to be called as each pipeline stage starts.
func WithStageCallback(fn func(Stage)) PipelineOption {
	return func(p *Pipeline) {
		p.onStage = fn
	}
}

func NewPipeline(extractor Extractor, chunker Chunker, embedder EmbeddingProvider, store DocumentStore, archive Archive, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		archive:   archive,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) notify(stage Stage) {
	if p.onStage != nil {
		p.onStage(stage)
	}
}

// Ingest archives and indexes the PDF at path into indexName. On partial
// indexing it returns both the result and a *PartialIndexingError so the
// caller can report which chunks were lost.
func (p *Pipeline) Ingest(ctx context.Context, path, indexName string) (*IngestResult, error) {
	p.notify(StageValidate)
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return nil, &ConfigurationError{Field: "filepath", Reason: "only PDF files are supported"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", path, err)
	}
	docName := filepath.Base(path)

	p.notify(StageArchive)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	location, err := p.archive.Store(ctx, docName, f, info.Size())
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to archive %s: %w", docName, err)
	}

	p.notify(StageExtract)
	text, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	p.notify(StageChunk)
	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, &ExtractionError{Path: path, Err: errors.New("document produced no chunks")}
	}

	p.notify(StageLoadModel)
	if err := p.embedder.Load(ctx); err != nil {
		return nil, err
	}

	p.notify(StageEmbed)
	vectors, err := p.embedder.Embed(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	p.notify(StageAssemble)
	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{
			Text:         piece,
			Ordinal:      i,
			TotalChunks:  len(pieces),
			DocumentName: docName,
			Source:       location,
			Embedding:    vectors[i],
		}
	}

	p.notify(StageEnsureIndex)
	if err := p.store.EnsureIndex(ctx, indexName, p.embedder.Dimensions()); err != nil {
		return nil, err
	}

	p.notify(StageReplace)
	replaced, err := p.store.DeleteByDocumentName(ctx, indexName, docName)
	if err != nil {
		return nil, fmt.Errorf("failed to remove previous version of %s: %w", docName, err)
	}

	p.notify(StageIndex)
	bulk, err := p.store.BulkIndex(ctx, indexName, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}

	result := &IngestResult{
		DocumentName: docName,
		IndexName:    indexName,
		ArchivePath:  location,
		Characters:   utf8.RuneCountInString(text),
		Chunks:       len(pieces),
		Indexed:      bulk.Indexed,
		Replaced:     replaced,
		Failed:       bulk.Failed,
	}

	log.Debug("document ingested",
		"document", docName,
		"index", indexName,
		"chunks", len(pieces),
		"indexed", bulk.Indexed,
		"replaced", replaced,
	)

	if len(bulk.Failed) > 0 {
		return result, &PartialIndexingError{Indexed: bulk.Indexed, Failed: bulk.Failed}
	}
	return result, nil
}
