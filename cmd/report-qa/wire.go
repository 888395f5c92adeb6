package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/report-qa/cli/config"
	"github.com/report-qa/cli/internal/db"
	"github.com/report-qa/cli/internal/documents"
	"github.com/report-qa/cli/internal/embeddings"
	"github.com/report-qa/cli/internal/llm"
	"github.com/report-qa/cli/internal/log"
	"github.com/report-qa/cli/internal/pipeline"
	"github.com/report-qa/cli/internal/rag"
	"github.com/report-qa/cli/internal/session"
	"github.com/report-qa/cli/internal/vectorstore"
)

// application is the wired object graph shared by every command.
type application struct {
	pipeline  *pipeline.Pipeline
	ollama    *llm.OllamaClient
	chatModel string
}

// Close releases the vector store.
func (a *application) Close() error {
	return a.pipeline.Close()
}

// modelLister is nil when chat runs against an OpenAI-compatible endpoint.
func (a *application) modelLister() (*llm.ModelSelector, func(string)) {
	if a.ollama == nil {
		return nil, nil
	}
	return llm.NewModelSelector(a.ollama), a.ollama.SetModel
}

func buildApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	logger := log.NewModuleLogger("cmd", "wire")

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	gateway := embeddings.NewGateway(embedder, cfg.Embeddings.RequestsPerSecond)

	chat, ollama, model, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx, gateway.Dimension()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	sessions := session.NewMemory(cfg.Chat.MaxMessages, cfg.Chat.SessionTimeout)
	retriever := rag.NewRetriever(gateway, store, cfg.Retrieval.FilterByCompany)
	processor := rag.NewProcessor(retriever, chat, sessions, cfg.Retrieval.TopK)

	p := pipeline.New(pipeline.Config{
		Chunker: documents.NewChunker(
			cfg.Processing.ChunkSize,
			cfg.Processing.ChunkOverlap,
			cfg.Processing.MaxChunkSize,
		),
		Embedder:             gateway,
		Store:                store,
		Processor:            processor,
		Sessions:             sessions,
		Workers:              cfg.Ingest.Workers,
		MarkdownLines:        cfg.Processing.MarkdownLines,
		MarkdownOverlapLines: cfg.Processing.MarkdownOverlapLines,
	})

	logger.Info("pipeline ready",
		slog.String("store", cfg.VectorStore.Type),
		slog.String("chat_provider", cfg.Provider.Chat),
		slog.String("chat_model", model),
		slog.String("embedding_provider", cfg.Provider.Embeddings),
		slog.Int("dimension", gateway.Dimension()),
	)

	return &application{pipeline: p, ollama: ollama, chatModel: model}, nil
}

func newEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Provider.Embeddings {
	case "ollama":
		return embeddings.NewOllamaEmbedder(
			cfg.Ollama.BaseURL,
			cfg.Ollama.EmbeddingModel,
			cfg.VectorStore.Dimension,
			cfg.Embeddings.BatchSize,
		), nil
	case "openai":
		key := cfg.OpenAIKey()
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.OpenAI.APIKeyEnv)
		}
		return embeddings.NewOpenAIEmbedder(
			cfg.OpenAI.BaseURL,
			key,
			cfg.OpenAI.EmbeddingModel,
			cfg.VectorStore.Dimension,
			cfg.Embeddings.BatchSize,
			time.Duration(cfg.OpenAI.TimeoutSecs)*time.Second,
		), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider.Embeddings)
	}
}

// newChatModel returns the chat capability. The Ollama client is returned
// separately so the console can switch models at runtime.
func newChatModel(ctx context.Context, cfg *config.Config) (llm.ChatModel, *llm.OllamaClient, string, error) {
	switch cfg.Provider.Chat {
	case "ollama":
		client := llm.NewOllamaClient(cfg.Ollama.BaseURL, cfg.Ollama.ChatModel)
		resolveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		model, err := llm.NewModelSelector(client).ResolveModel(resolveCtx, cfg.Ollama.ChatModel)
		if err != nil {
			return nil, nil, "", fmt.Errorf("failed to select chat model: %w", err)
		}
		client.SetModel(model)
		return client, client, model, nil
	case "openai":
		key := cfg.OpenAIKey()
		if key == "" {
			return nil, nil, "", fmt.Errorf("environment variable %s is not set", cfg.OpenAI.APIKeyEnv)
		}
		client := llm.NewOpenAIClient(
			cfg.OpenAI.BaseURL,
			key,
			cfg.OpenAI.ChatModel,
			time.Duration(cfg.OpenAI.TimeoutSecs)*time.Second,
		)
		return client, nil, cfg.OpenAI.ChatModel, nil
	default:
		return nil, nil, "", fmt.Errorf("unknown chat provider %q", cfg.Provider.Chat)
	}
}

var errUnknownStore = errors.New("unknown vector store type")

func newStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorStore.Type {
	case "pgvector", "postgres":
		database, err := db.New(ctx, cfg.DSN(), db.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		return db.NewStore(database, cfg.Database.Table), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     cfg.QdrantKey(),
			UseTLS:     q.UseTLS,
			Collection: q.Collection,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownStore, cfg.VectorStore.Type)
	}
}
