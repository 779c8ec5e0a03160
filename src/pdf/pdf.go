// Package pdf extracts text from PDF files, one block per page.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"

	"paperchat/src/core/rag"
)

type Extractor struct{}

var _ rag.Extractor = (*Extractor)(nil)

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the document text in page order, pages joined by a
// newline. An unparsable file or one with no extractable text is an
// *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &rag.ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &rag.ExtractionError{Path: path, Err: err}
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return "", &rag.ExtractionError{Path: path, Err: fmt.Errorf("failed to parse pdf: %w", err)}
	}

	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.PageContent)
	}

	text := strings.Join(pages, "\n")
	if strings.TrimSpace(text) == "" {
		return "", &rag.ExtractionError{Path: path, Err: errors.New("document contains no extractable text")}
	}
	return text, nil
}
