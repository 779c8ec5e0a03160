package rag

import (
	"bytes"
	"fmt"
	"text/template"
)

// DefaultSystemPrompt is the fixed instruction placed at the top of every
// chat prompt.
const DefaultSystemPrompt = `You are a helpful assistant answering questions about the user's documents. ` +
	`When context passages are provided, ground your answer in them and mention the document they came from. ` +
	`When no context is provided, answer from general knowledge and say that you are doing so.`

const chatPromptTmpl = `{{.System}}

{{if .Context -}}
Context:
{{.Context}}

{{end -}}
{{if .History -}}
Conversation so far:
{{range .History}}{{.Label}}: {{.Content}}
{{end}}
{{end -}}
User: {{.Input}}
Assistant:`

var chatPrompt = template.Must(template.New("chat").Parse(chatPromptTmpl))

type promptTurn struct {
	Label   string
	Content string
}

type promptData struct {
	System  string
	Context string
	History []promptTurn
	Input   string
}

// buildPrompt renders the full prompt: system instruction, retrieved context
// (when non-empty), prior history in order, then the new user turn.
func buildPrompt(system, contextText string, history []Message, input string) (string, error) {
	data := promptData{
		System:  system,
		Context: contextText,
		Input:   input,
	}
	for _, m := range history {
		data.History = append(data.History, promptTurn{Label: roleLabel(m.Role), Content: m.Content})
	}

	var buf bytes.Buffer
	if err := chatPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute chat prompt template: %w", err)
	}
	return buf.String(), nil
}

func roleLabel(role string) string {
	switch role {
	case RoleAssistant:
		return "Assistant"
	default:
		return "User"
	}
}
