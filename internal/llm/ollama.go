package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
)

// OllamaClient wraps Ollama API interactions
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.RWMutex
	model string
}

// NewOllamaClient creates a new Ollama client. model may be set later with
// SetModel once the model selector has picked one.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: log.NewModuleLogger("llm", "ollama"),
	}
}

// Model returns the model used for generation.
func (c *OllamaClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetModel switches the model used for generation. Requests already in
// flight keep the previous model.
func (c *OllamaClient) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

// GenerateRequest represents a generation request
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResponse is one line of a generation response
type GenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count,omitempty"`
}

// ChatRequest represents a /api/chat request
type ChatRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

// ChatResponse is one line of a /api/chat response
type ChatResponse struct {
	Model   string         `json:"model"`
	Message domain.Message `json:"message"`
	Done    bool           `json:"done"`
}

// Chat sends a single prompt through /api/generate.
func (c *OllamaClient) Chat(ctx context.Context, prompt string) (string, error) {
	model := c.Model()
	text, err := stream(ctx, c, "/api/generate", &GenerateRequest{Model: model, Prompt: prompt},
		func(r *GenerateResponse) (string, bool) { return r.Response, r.Done })
	if err != nil {
		return "", err
	}
	c.logger.Debug("generate completed", "model", model, "chars", len(text))
	return text, nil
}

// ChatWithHistory sends the whole conversation through /api/chat.
func (c *OllamaClient) ChatWithHistory(ctx context.Context, messages []domain.Message) (string, error) {
	model := c.Model()
	text, err := stream(ctx, c, "/api/chat", &ChatRequest{Model: model, Messages: messages},
		func(r *ChatResponse) (string, bool) { return r.Message.Content, r.Done })
	if err != nil {
		return "", err
	}
	c.logger.Debug("chat completed", "model", model, "messages", len(messages), "chars", len(text))
	return text, nil
}

// stream concatenates the text of a newline-delimited JSON response until a
// line reports done or the body ends.
func stream[T any](ctx context.Context, c *OllamaClient, path string, payload any, part func(*T) (string, bool)) (string, error) {
	body, err := c.post(ctx, path, payload)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var out strings.Builder
	decoder := json.NewDecoder(body)
	for {
		var line T
		if err := decoder.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		text, done := part(&line)
		out.WriteString(text)
		if done {
			break
		}
	}
	return out.String(), nil
}

func (c *OllamaClient) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}
