package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"paperchat/src/core/rag"
)

func TestChatSessionTurnPrompt(t *testing.T) {
	tests := []struct {
		name          string
		ragEnabled    bool
		hits          []rag.SearchResult
		wantPrompt    string
		wantRetrieved int
	}{
		{
			name:       "rag disabled",
			ragEnabled: false,
			wantPrompt: "S\n\nUser: what is go\nAssistant:",
		},
		{
			name:       "rag with results",
			ragEnabled: true,
			hits: []rag.SearchResult{
				{Text: "chunk one"},
				{Text: "chunk two"},
			},
			wantPrompt:    "S\n\nContext:\nchunk one\n\nchunk two\n\nUser: what is go\nAssistant:",
			wantRetrieved: 2,
		},
		{
			name:       "rag with empty index",
			ragEnabled: true,
			hits:       nil,
			wantPrompt: "S\n\nUser: what is go\nAssistant:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{hits: tt.hits}
			llm := &fakeLLM{fragments: []string{"an answer"}}
			var search *rag.SearchService
			if tt.ragEnabled {
				search = rag.NewSearchService(store, &fakeEmbedder{dims: 2})
			}
			session := rag.NewChatSession(llm, search, rag.ChatConfig{
				IndexName:    "rag_index",
				RAGEnabled:   tt.ragEnabled,
				SystemPrompt: "S",
			})

			result, err := session.Turn(context.Background(), "what is go", nil)
			if err != nil {
				t.Fatalf("Turn() error = %v", err)
			}
			if len(llm.prompts) != 1 {
				t.Fatalf("Generate called %d times, want 1", len(llm.prompts))
			}
			if llm.prompts[0] != tt.wantPrompt {
				t.Errorf("Turn() prompt = %q, want %q", llm.prompts[0], tt.wantPrompt)
			}
			if result.Retrieved != tt.wantRetrieved {
				t.Errorf("Turn() retrieved = %d, want %d", result.Retrieved, tt.wantRetrieved)
			}
			if !tt.ragEnabled && len(store.calls) != 0 {
				t.Errorf("store called with rag disabled: %v", store.calls)
			}
		})
	}
}

func TestChatSessionTurnAppendsHistory(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"first ", "answer"}}
	session := rag.NewChatSession(llm, nil, rag.ChatConfig{SystemPrompt: "S"})

	if _, err := session.Turn(context.Background(), "q1", nil); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}

	want := []rag.Message{
		{Role: rag.RoleUser, Content: "q1"},
		{Role: rag.RoleAssistant, Content: "first answer"},
	}
	got := session.History()
	if len(got) != len(want) {
		t.Fatalf("History() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("History()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := session.Turn(context.Background(), "q2", nil); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	wantPrompt := "S\n\nConversation so far:\nUser: q1\nAssistant: first answer\n\nUser: q2\nAssistant:"
	if llm.prompts[1] != wantPrompt {
		t.Errorf("second turn prompt = %q, want %q", llm.prompts[1], wantPrompt)
	}
}

func TestChatSessionTurnStreamsFragments(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"Go is ", "a language", "."}}
	session := rag.NewChatSession(llm, nil, rag.ChatConfig{Temperature: 0.2})

	var streamed []string
	result, err := session.Turn(context.Background(), "q", func(fragment string) error {
		streamed = append(streamed, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if result.Response != "Go is a language." {
		t.Errorf("Turn() response = %q, want %q", result.Response, "Go is a language.")
	}
	if strings.Join(streamed, "") != result.Response {
		t.Errorf("streamed fragments = %q, want %q", strings.Join(streamed, ""), result.Response)
	}
	if len(llm.temps) != 1 || llm.temps[0] != 0.2 {
		t.Errorf("Generate temperature = %v, want [0.2]", llm.temps)
	}
}

func TestChatSessionTurnFailureLeavesHistory(t *testing.T) {
	tests := []struct {
		name    string
		inject  func(llm *fakeLLM, store *fakeStore)
		wantMsg string
	}{
		{
			name: "generation fails",
			inject: func(llm *fakeLLM, store *fakeStore) {
				llm.genErr = errors.New("model crashed")
			},
			wantMsg: "model crashed",
		},
		{
			name: "retrieval fails",
			inject: func(llm *fakeLLM, store *fakeStore) {
				store.searchErr = errors.New("engine down")
			},
			wantMsg: "failed to retrieve context",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{hits: []rag.SearchResult{{Text: "chunk"}}}
			llm := &fakeLLM{fragments: []string{"answer"}}
			search := rag.NewSearchService(store, &fakeEmbedder{dims: 2})
			session := rag.NewChatSession(llm, search, rag.ChatConfig{
				IndexName:  "rag_index",
				RAGEnabled: true,
			})

			if _, err := session.Turn(context.Background(), "q1", nil); err != nil {
				t.Fatalf("seed Turn() error = %v", err)
			}
			before := session.History()

			tt.inject(llm, store)
			_, err := session.Turn(context.Background(), "q2", nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("Turn() error = %v, want containing %q", err, tt.wantMsg)
			}

			after := session.History()
			if len(after) != len(before) {
				t.Fatalf("History() length = %d after failed turn, want %d", len(after), len(before))
			}
			for i := range before {
				if after[i] != before[i] {
					t.Errorf("History()[%d] = %+v, want %+v", i, after[i], before[i])
				}
			}
		})
	}
}

func TestChatSessionTurnCancelledMidStream(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"partial ", "rest"}}
	session := rag.NewChatSession(llm, nil, rag.ChatConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen []string
	_, err := session.Turn(ctx, "q", func(fragment string) error {
		seen = append(seen, fragment)
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Turn() error = %v, want context.Canceled", err)
	}
	if len(seen) != 1 {
		t.Errorf("fragments before cancel = %d, want 1", len(seen))
	}
	if len(session.History()) != 0 {
		t.Errorf("History() length = %d, want 0 after cancelled turn", len(session.History()))
	}
}

func TestChatSessionClear(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"answer"}}
	session := rag.NewChatSession(llm, nil, rag.ChatConfig{SystemPrompt: "S"})

	if _, err := session.Turn(context.Background(), "q1", nil); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	session.Clear()
	if got := session.History(); len(got) != 0 {
		t.Fatalf("History() after Clear = %d messages, want 0", len(got))
	}

	if _, err := session.Turn(context.Background(), "q2", nil); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	wantPrompt := "S\n\nUser: q2\nAssistant:"
	if got := llm.prompts[1]; got != wantPrompt {
		t.Errorf("prompt after Clear = %q, want %q", got, wantPrompt)
	}
}

func TestChatSessionHistoryReturnsCopy(t *testing.T) {
	llm := &fakeLLM{fragments: []string{"answer"}}
	session := rag.NewChatSession(llm, nil, rag.ChatConfig{})

	if _, err := session.Turn(context.Background(), "q", nil); err != nil {
		t.Fatalf("Turn() error = %v", err)
	}

	history := session.History()
	history[0].Content = "tampered"

	if got := session.History()[0].Content; got != "q" {
		t.Errorf("History()[0].Content = %q, want %q", got, "q")
	}
}

func TestChatSessionStart(t *testing.T) {
	tests := []struct {
		name      string
		ensureErr error
		loadErr   error
		rag       bool
		wantErr   bool
		wantLoads int
	}{
		{
			name:      "model available without rag",
			rag:       false,
			wantLoads: 0,
		},
		{
			name:      "model available with rag",
			rag:       true,
			wantLoads: 1,
		},
		{
			name:      "model missing",
			ensureErr: errors.New("pull failed"),
			wantErr:   true,
		},
		{
			name:      "embedding model load fails",
			rag:       true,
			loadErr:   errors.New("no such model"),
			wantErr:   true,
			wantLoads: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := &fakeEmbedder{dims: 2, loadErr: tt.loadErr}
			var search *rag.SearchService
			if tt.rag {
				search = rag.NewSearchService(&fakeStore{}, embedder)
			}
			session := rag.NewChatSession(&fakeLLM{ensureErr: tt.ensureErr}, search, rag.ChatConfig{RAGEnabled: tt.rag})

			err := session.Start(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Start() error = %v, wantErr %v", err, tt.wantErr)
			}
			if embedder.loadCalls != tt.wantLoads {
				t.Errorf("embedding model loads = %d, want %d", embedder.loadCalls, tt.wantLoads)
			}
		})
	}
}
