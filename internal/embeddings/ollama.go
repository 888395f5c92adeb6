package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbedder generates text embeddings using Ollama
type OllamaEmbedder struct {
	baseURL      string
	model        string
	dimension    int
	maxBatchSize int
	httpClient   *http.Client
}

// NewOllamaEmbedder creates a new Ollama embedder
func NewOllamaEmbedder(baseURL, model string, dimension, maxBatchSize int) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		model:        model,
		dimension:    dimension,
		maxBatchSize: maxBatchSize,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
}

func (e *OllamaEmbedder) Dimension() int    { return e.dimension }
func (e *OllamaEmbedder) MaxBatchSize() int { return e.maxBatchSize }

// Embed generates an embedding for the given text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	payload := map[string]any{
		"model":  e.model,
		"prompt": text,
	}
	if err := e.post(ctx, "/api/embeddings", payload, &result); err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return result.Embedding, nil
}

// EmbedBatch embeds all texts with a single /api/embed call
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	payload := map[string]any{
		"model": e.model,
		"input": texts,
	}
	if err := e.post(ctx, "/api/embed", payload, &result); err != nil {
		return nil, err
	}
	return result.Embeddings, nil
}

func (e *OllamaEmbedder) post(ctx context.Context, path string, payload any, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
