package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"paperchat/src/log"
)

// ChatConfig carries the per-session knobs. Zero values are filled with the
// package defaults by NewChatSession.
type ChatConfig struct {
	IndexName    string
	RAGEnabled   bool
	TopK         int
	Temperature  float64
	SystemPrompt string
}

// TurnResult reports one completed conversation turn.
type TurnResult struct {
	Response  string
	Retrieved int
}

// ChatSession is the retrieval-augmented chat engine for one interactive
// session. It owns the conversation history and the collaborator handles;
// there is no ambient session state anywhere else. Sessions are not safe for
// concurrent use; the tool is single-user, turn-by-turn.
type ChatSession struct {
	id      string
	cfg     ChatConfig
	llm     LanguageModel
	search  *SearchService
	history []Message
}

// NewChatSession builds a session. search may be nil only when RAG is
// disabled in cfg.
func NewChatSession(llm LanguageModel, search *SearchService, cfg ChatConfig) *ChatSession {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &ChatSession{
		id:     uuid.New().String(),
		cfg:    cfg,
		llm:    llm,
		search: search,
	}
}

// ID returns the session identifier used in log correlation.
func (s *ChatSession) ID() string { return s.id }

// Start performs the one-time blocking initialization: the language model is
// pulled if missing and, when RAG is enabled, the embedding model is loaded.
// An error here means the session cannot begin.
func (s *ChatSession) Start(ctx context.Context) error {
	if err := s.llm.EnsureAvailable(ctx); err != nil {
		return err
	}
	if s.cfg.RAGEnabled {
		if err := s.search.Prepare(ctx); err != nil {
			return err
		}
	}
	log.Debug("chat session started", "session", s.id, "rag", s.cfg.RAGEnabled, "index", s.cfg.IndexName)
	return nil
}

// Turn runs one conversation turn: retrieve context (when RAG is enabled),
// assemble the prompt from system instruction + context + history + input,
// and stream the model response through onFragment. History is appended,
// user turn first then assistant turn, only after the stream completes;
// any failure, including cancellation mid-stream, leaves it untouched.
func (s *ChatSession) Turn(ctx context.Context, input string, onFragment func(string) error) (*TurnResult, error) {
	var contextText string
	var retrieved int

	if s.cfg.RAGEnabled {
		results, err := s.search.Search(ctx, s.cfg.IndexName, input, s.cfg.TopK)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve context: %w", err)
		}
		contextText = joinResultTexts(results)
		retrieved = len(results)
	}

	prompt, err := buildPrompt(s.cfg.SystemPrompt, contextText, s.history, input)
	if err != nil {
		return nil, err
	}
	log.Debug("chat turn", "session", s.id, "retrieved", retrieved, "history_len", len(s.history))

	response, err := s.llm.Generate(ctx, prompt, s.cfg.Temperature, onFragment)
	if err != nil {
		return nil, err
	}

	s.history = append(s.history,
		Message{Role: RoleUser, Content: input},
		Message{Role: RoleAssistant, Content: response},
	)
	return &TurnResult{Response: response, Retrieved: retrieved}, nil
}

// Clear resets the conversation history without ending the session.
func (s *ChatSession) Clear() {
	s.history = nil
	log.Debug("chat history cleared", "session", s.id)
}

// History returns a copy of the conversation so far.
func (s *ChatSession) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// joinResultTexts concatenates retrieved chunk texts in rank order. The
// blank-line separator keeps passage boundaries visible to the model.
func joinResultTexts(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n\n")
}
