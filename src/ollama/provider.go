package ollama

import (
	"context"
	"errors"
	"fmt"

	"paperchat/src/core/rag"
	"paperchat/src/log"
)

// EmbeddingService adapts the embeddings endpoint to the ingestion and
// search engines. Load probes the model once with a short input and caches
// the vector width it reports.
type EmbeddingService struct {
	client *Client
	model  string
	dims   int
	loaded bool
}

var _ rag.EmbeddingProvider = (*EmbeddingService)(nil)

func NewEmbeddingService(client *Client, model string) *EmbeddingService {
	return &EmbeddingService{
		client: client,
		model:  model,
	}
}

func (s *EmbeddingService) Load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	vector, err := s.client.GetEmbedding(ctx, s.model, "ping")
	if err != nil {
		return &rag.ModelUnavailableError{Model: s.model, Err: err}
	}
	if len(vector) == 0 {
		return &rag.ModelUnavailableError{Model: s.model, Err: errors.New("runtime returned an empty embedding")}
	}

	s.dims = len(vector)
	s.loaded = true
	log.Debug("embedding model loaded", "model", s.model, "dimensions", s.dims)
	return nil
}

func (s *EmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := s.client.GetEmbedding(ctx, s.model, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (s *EmbeddingService) Dimensions() int { return s.dims }

// LLM adapts the generate endpoint to the chat engine.
type LLM struct {
	client *Client
	model  string
	onPull func(PullProgress) error
}

var _ rag.LanguageModel = (*LLM)(nil)

type LLMOption func(*LLM)

// WithPullProgress forwards pull progress lines to fn when EnsureAvailable
// has to download the model.
func WithPullProgress(fn func(PullProgress) error) LLMOption {
	return func(l *LLM) { l.onPull = fn }
}

func NewLLM(client *Client, model string, opts ...LLMOption) *LLM {
	l := &LLM{
		client: client,
		model:  model,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LLM) EnsureAvailable(ctx context.Context) error {
	if err := l.client.EnsureModel(ctx, l.model, l.onPull); err != nil {
		return &rag.ModelUnavailableError{Model: l.model, Err: err}
	}
	return nil
}

func (l *LLM) Generate(ctx context.Context, prompt string, temperature float64, onFragment func(string) error) (string, error) {
	options := map[string]interface{}{
		"temperature": temperature,
	}
	return l.client.Generate(ctx, l.model, prompt, options, onFragment)
}

// Runtime exposes the installed model list for health checks.
type Runtime struct {
	client *Client
}

var _ rag.ModelRuntime = (*Runtime)(nil)

func NewRuntime(client *Client) *Runtime {
	return &Runtime{client: client}
}

func (r *Runtime) Models(ctx context.Context) ([]rag.ModelInfo, error) {
	models, err := r.client.Models(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]rag.ModelInfo, len(models))
	for i, m := range models {
		out[i] = rag.ModelInfo{Name: m.Name, Size: m.Size}
	}
	return out, nil
}
