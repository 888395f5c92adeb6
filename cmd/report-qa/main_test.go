package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/report-qa/cli/config"
	"github.com/report-qa/cli/internal/llm"
	"github.com/report-qa/cli/internal/vectorstore"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "ingest-dir", "ask", "chat", "reset"} {
		assert.True(t, names[want], "%s command should be registered", want)
	}
}

func TestAskHelpOutput(t *testing.T) {
	out, err := execute(t, "ask", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "first quoted name")
	assert.Contains(t, out, "--kind")
}

func TestResetRequiresConfirmation(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := execute(t, "--config", missing, "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestAskRejectsUnknownKind(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := execute(t, "--config", missing, "ask", "--kind", "colour", `What is "Acme"?`)
	assert.Error(t, err)
	askKind = "string"
}

func TestNewStoreSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Type = "memory"
	store, err := newStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &vectorstore.MemoryStore{}, store)

	cfg.VectorStore.Type = "sqlite"
	_, err = newStore(context.Background(), cfg)
	assert.ErrorIs(t, err, errUnknownStore)
}

func TestProvidersRequireKnownNamesAndKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Embeddings = "bert"
	_, err := newEmbedder(cfg)
	assert.Error(t, err)

	cfg.Provider.Embeddings = "openai"
	cfg.OpenAI.APIKeyEnv = "REPORT_QA_TEST_UNSET_KEY"
	_, err = newEmbedder(cfg)
	assert.ErrorContains(t, err, "REPORT_QA_TEST_UNSET_KEY")

	cfg.Provider.Chat = "openai"
	_, _, _, err = newChatModel(context.Background(), cfg)
	assert.ErrorContains(t, err, "REPORT_QA_TEST_UNSET_KEY")

	t.Setenv("REPORT_QA_TEST_KEY", "sk-test")
	cfg.OpenAI.APIKeyEnv = "REPORT_QA_TEST_KEY"
	chat, ollama, model, err := newChatModel(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, chat)
	assert.Nil(t, ollama)
	assert.Equal(t, cfg.OpenAI.ChatModel, model)
}

func TestBuildApplicationWithOllamaAndMemoryStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(llm.ListModelsResponse{Models: []llm.ModelInfo{
			{Name: "nomic-embed-text:latest", Size: 900},
			{Name: "llama3.1:8b", Size: 400},
		}})
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.VectorStore.Type = "memory"
	cfg.Ollama.BaseURL = srv.URL
	cfg.Ollama.ChatModel = ""

	app, err := buildApplication(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	assert.Equal(t, "llama3.1:8b", app.chatModel)
	selector, setModel := app.modelLister()
	require.NotNil(t, selector)
	setModel("other")
	assert.Equal(t, "other", app.ollama.Model())

	id := app.pipeline.NewSession()
	assert.True(t, app.pipeline.SessionExists(id))
}
