// Package chunker splits extracted text into fixed-stride overlapping
// passages. Boundaries are rune positions, never bytes, so multibyte text is
// never cut mid-character.
package chunker

import (
	"paperchat/src/core/rag"
)

const (
	DefaultSize    = 512
	DefaultOverlap = 50
)

// Chunker emits chunks of at most size runes, each starting size-overlap
// runes after the previous one. The original text is recoverable by
// concatenating the first chunk with every later chunk minus its first
// overlap runes.
type Chunker struct {
	size    int
	overlap int
}

type Option func(*Chunker)

func WithSize(size int) Option {
	return func(c *Chunker) { c.size = size }
}

func WithOverlap(overlap int) Option {
	return func(c *Chunker) { c.overlap = overlap }
}

// New validates the configuration up front so Split never fails.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.size <= 0 {
		return nil, &rag.ConfigurationError{Field: "chunk.size", Reason: "must be positive"}
	}
	if c.overlap < 0 {
		return nil, &rag.ConfigurationError{Field: "chunk.overlap", Reason: "must not be negative"}
	}
	if c.overlap >= c.size {
		return nil, &rag.ConfigurationError{Field: "chunk.overlap", Reason: "must be smaller than chunk.size"}
	}
	return c, nil
}

// Split chunks text. Empty input yields no chunks.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
