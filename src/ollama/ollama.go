package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paperchat/src/log"
)

const (
	DefaultURL = "http://localhost:11434/api"

	defaultTimeout = 5 * time.Minute
)

// EmbeddingRequest represents the request structure for embeddings
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse represents the response structure from embeddings
type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// GenerateRequest represents the request structure for model generation
type GenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// GenerateResponse represents the response structure from generation
type GenerateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	Truncated bool   `json:"truncated,omitempty"`
}

// ErrTruncated is returned when the response was truncated
type ErrTruncated struct {
	Message string
}

func (e *ErrTruncated) Error() string {
	return e.Message
}

// PullRequest represents the request structure for model pulls
type PullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullProgress is one status line of a streamed pull.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Model describes one entry of the runtime's installed model list.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

// Client represents an Ollama API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Ollama API client. A nil http.Client gets a
// generous timeout since generation and pulls are slow.
func NewClient(baseURL string, c *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if c == nil {
		c = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		httpClient: c,
		baseURL:    baseURL,
	}
}

// GetEmbedding generates an embedding vector for the given text using the specified model
func (c *Client) GetEmbedding(ctx context.Context, model string, text string) ([]float32, error) {
	reqBody := EmbeddingRequest{
		Model:  model,
		Prompt: text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	return result.Embedding, nil
}

// Generate streams a completion for the given prompt. Every response
// fragment is appended to the returned string and, when onFragment is
// non-nil, forwarded to it as it arrives. An error from onFragment or a
// cancelled ctx abandons the request.
func (c *Client) Generate(ctx context.Context, model, prompt string, options map[string]interface{}, onFragment func(string) error) (string, error) {
	reqBody := GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  true,
		Options: options,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/generate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error(err, "failed to make request to ollama")
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	reader := bufio.NewReader(resp.Body)
	var fullResponse strings.Builder

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// Some runtimes close the stream without a done marker.
				if fullResponse.Len() > 0 {
					return fullResponse.String(), nil
				}
				break
			}
			return "", fmt.Errorf("error reading response: %w", err)
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var response GenerateResponse
		if err := json.Unmarshal(line, &response); err != nil {
			log.Error(err, "failed to unmarshal response line", "line", string(line))
			return "", fmt.Errorf("error unmarshaling response: %w", err)
		}

		if response.Response != "" {
			fullResponse.WriteString(response.Response)
			if onFragment != nil {
				if err := onFragment(response.Response); err != nil {
					return "", err
				}
			}
		}

		if response.Truncated {
			return "", &ErrTruncated{Message: "response was truncated by the model"}
		}

		if response.Done {
			return fullResponse.String(), nil
		}
	}

	return "", fmt.Errorf("no response received from ollama")
}

// Models lists the models installed in the runtime.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	url := fmt.Sprintf("%s/tags", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	return result.Models, nil
}

// Pull downloads a model into the runtime, forwarding progress lines to
// onProgress when it is non-nil.
func (c *Client) Pull(ctx context.Context, model string, onProgress func(PullProgress) error) error {
	reqBody := PullRequest{
		Name:   model,
		Stream: true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/pull", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("error reading response: %w", err)
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var progress PullProgress
		if err := json.Unmarshal(line, &progress); err != nil {
			return fmt.Errorf("error unmarshaling response: %w", err)
		}

		if progress.Err != "" {
			return fmt.Errorf("pull failed: %s", progress.Err)
		}

		if onProgress != nil {
			if err := onProgress(progress); err != nil {
				return err
			}
		}

		if progress.Status == "success" {
			return nil
		}
	}
}

// EnsureModel checks the runtime for model and pulls it when missing.
func (c *Client) EnsureModel(ctx context.Context, model string, onProgress func(PullProgress) error) error {
	models, err := c.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if matchesModel(m.Name, model) {
			return nil
		}
	}

	log.Info("model not installed, pulling", "model", model)
	return c.Pull(ctx, model, onProgress)
}

// matchesModel treats an untagged name as matching any tag of that model,
// so "llama3.2" finds the installed "llama3.2:latest".
func matchesModel(installed, want string) bool {
	if installed == want {
		return true
	}
	if strings.Contains(want, ":") {
		return false
	}
	return strings.SplitN(installed, ":", 2)[0] == want
}
