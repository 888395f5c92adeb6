package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/report-qa/cli/internal/domain"
)

func TestOllamaChatUsesGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5", req.Model)
		assert.Equal(t, "hi", req.Prompt)
		assert.False(t, req.Stream)

		w.Write([]byte(`{"response":"hel","done":false}` + "\n" + `{"response":"lo","done":true}` + "\n"))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "qwen2.5")
	out, err := c.Chat(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestOllamaChatWithHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, domain.RoleSystem, req.Messages[0].Role)
		assert.Equal(t, "question", req.Messages[1].Content)

		w.Write([]byte(`{"message":{"role":"assistant","content":"{\"final_answer\":1}"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m")
	out, err := c.ChatWithHistory(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "system"},
		{Role: domain.RoleUser, Content: "question"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"final_answer":1}`, out)
}

func TestOllamaErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "m").Chat(context.Background(), "x")
	assert.ErrorContains(t, err, "503")
}

func tagsServer(t *testing.T, models []ModelInfo) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(ListModelsResponse{Models: models})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestModelSelector(t *testing.T) {
	models := []ModelInfo{
		{Name: "nomic-embed-text:latest", Size: 900},
		{Name: "phi3:mini", Size: 100},
		{Name: "gemma:7b", Size: 500},
	}
	ms := NewModelSelector(NewOllamaClient(tagsServer(t, models).URL, ""))

	best, err := ms.SelectBestModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gemma:7b", best, "largest non-embedding model")

	resolved, err := ms.ResolveModel(context.Background(), "phi3:mini")
	require.NoError(t, err)
	assert.Equal(t, "phi3:mini", resolved)

	resolved, err = ms.ResolveModel(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "gemma:7b", resolved)
}

func TestModelSelectorPrefersKnownFamilies(t *testing.T) {
	models := []ModelInfo{
		{Name: "gemma:7b", Size: 500},
		{Name: "qwen2.5:7b", Size: 1},
	}
	ms := NewModelSelector(NewOllamaClient(tagsServer(t, models).URL, ""))

	best, err := ms.SelectBestModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", best)
}

func TestModelSelectorOnlyEmbeddingModels(t *testing.T) {
	ms := NewModelSelector(NewOllamaClient(tagsServer(t, []ModelInfo{{Name: "nomic-embed-text"}}).URL, ""))

	_, err := ms.SelectBestModel(context.Background())
	assert.ErrorContains(t, err, "no chat models")
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, domain.RoleUser, req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1/", "key", "gpt-4o-mini", time.Second)
	out, err := c.Chat(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "", "m", 0).Chat(context.Background(), "prompt")
	assert.ErrorContains(t, err, "no choices")
}
