package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// ModelInfo represents information about an Ollama model
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// IsEmbeddingModel reports whether name looks like an embedding-only model.
func IsEmbeddingModel(name string) bool {
	return strings.Contains(strings.ToLower(name), "embed")
}

// ListModelsResponse represents the response from listing models
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelSelector picks a local chat model when none is configured
type ModelSelector struct {
	client *OllamaClient
}

// NewModelSelector creates a new model selector
func NewModelSelector(client *OllamaClient) *ModelSelector {
	return &ModelSelector{client: client}
}

// ListModels lists all available Ollama models
func (ms *ModelSelector) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ms.client.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := ms.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, string(body))
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Models, nil
}

// preferredModels are tried in order; they follow JSON instructions well.
var preferredModels = []string{
	"qwen2.5",
	"llama3.1",
	"llama3.2",
	"mistral",
	"llama3",
}

// SelectBestModel picks a preferred chat model, else the largest one.
// Embedding models are never chosen.
func (ms *ModelSelector) SelectBestModel(ctx context.Context) (string, error) {
	models, err := ms.ListModels(ctx)
	if err != nil {
		return "", err
	}

	chat := models[:0:0]
	for _, m := range models {
		if !IsEmbeddingModel(m.Name) {
			chat = append(chat, m)
		}
	}
	if len(chat) == 0 {
		return "", fmt.Errorf("no chat models available")
	}

	for _, preferred := range preferredModels {
		for _, m := range chat {
			if strings.Contains(strings.ToLower(m.Name), preferred) {
				return m.Name, nil
			}
		}
	}

	sort.SliceStable(chat, func(i, j int) bool {
		return chat[i].Size > chat[j].Size
	})
	return chat[0].Name, nil
}

// ResolveModel keeps configured if it is installed, else selects one.
func (ms *ModelSelector) ResolveModel(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		models, err := ms.ListModels(ctx)
		if err != nil {
			return "", err
		}
		for _, m := range models {
			if m.Name == configured {
				return configured, nil
			}
		}
	}
	return ms.SelectBestModel(ctx)
}
