package rag

import (
	"fmt"
)

// ExtractionError reports a PDF that could not be read or yielded no text.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting text from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid parameter value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ModelUnavailableError reports a model the runtime could not load or pull.
// At session start this is fatal.
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable: %v", e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// SchemaMismatchError reports an existing index whose shape is incompatible
// with the chunk schema this tool writes.
type SchemaMismatchError struct {
	Index  string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("index %s has an incompatible schema: %s", e.Index, e.Reason)
}

// StoreUnavailableError reports an unreachable search engine.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("document store unreachable: %v", e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// PartialIndexingError reports a bulk run where some chunks were rejected.
// It is a warning-grade outcome: the indexed chunks are searchable and the
// caller decides whether to retry the failed ones.
type PartialIndexingError struct {
	Indexed int
	Failed  []ChunkFailure
}

func (e *PartialIndexingError) Error() string {
	return fmt.Sprintf("indexed %d chunks, %d failed", e.Indexed, len(e.Failed))
}
