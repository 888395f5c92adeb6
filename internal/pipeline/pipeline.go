// Package pipeline ties ingestion and question answering together behind a
// single facade used by the CLI, the HTTP server and the TUI.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/report-qa/cli/internal/documents"
	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
	"github.com/report-qa/cli/internal/rag"
	"github.com/report-qa/cli/internal/session"
	"github.com/report-qa/cli/internal/vectorstore"
)

const defaultWorkers = 4

// BatchEmbedder embeds chunk texts, one vector per text in order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the pipeline's collaborators and settings.
type Config struct {
	Chunker   *documents.Chunker
	Embedder  BatchEmbedder
	Store     vectorstore.Store
	Processor *rag.Processor
	Sessions  *session.Memory

	// Workers bounds parallel file ingestion.
	Workers              int
	MarkdownLines        int
	MarkdownOverlapLines int
}

// Pipeline is the upward boundary of the system.
type Pipeline struct {
	chunker   *documents.Chunker
	embedder  BatchEmbedder
	store     vectorstore.Store
	processor *rag.Processor
	sessions  *session.Memory

	workers              int
	markdownLines        int
	markdownOverlapLines int

	logger *slog.Logger
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Chunker == nil {
		cfg.Chunker = documents.NewChunker(documents.DefaultChunkSize, documents.DefaultChunkOverlap, documents.DefaultMaxChunkSize)
	}
	return &Pipeline{
		chunker:              cfg.Chunker,
		embedder:             cfg.Embedder,
		store:                cfg.Store,
		processor:            cfg.Processor,
		sessions:             cfg.Sessions,
		workers:              cfg.Workers,
		markdownLines:        cfg.MarkdownLines,
		markdownOverlapLines: cfg.MarkdownOverlapLines,
		logger:               log.NewModuleLogger("pipeline", "pipeline"),
	}
}

// Answer answers a question. An empty sessionID answers statelessly. The
// returned Result always carries a well-formed Answer.
func (p *Pipeline) Answer(ctx context.Context, text string, kind domain.Kind, sessionID string) rag.Result {
	return p.processor.Process(ctx, domain.Question{Text: text, Kind: kind}, sessionID)
}

// AnswerBatch answers questions in order without sessions.
func (p *Pipeline) AnswerBatch(ctx context.Context, questions []domain.Question) []rag.Result {
	return p.processor.ProcessBatch(ctx, questions)
}

// NewSession starts a conversation and returns its id.
func (p *Pipeline) NewSession() string {
	return p.sessions.CreateSession()
}

// ClearSession empties a session's history.
func (p *Pipeline) ClearSession(id string) {
	p.sessions.ClearSession(id)
}

// DeleteSession forgets a session.
func (p *Pipeline) DeleteSession(id string) {
	p.sessions.DeleteSession(id)
}

// SessionExists reports whether id is a live session.
func (p *Pipeline) SessionExists(id string) bool {
	return p.sessions.Exists(id)
}

// History returns a copy of a session's messages.
func (p *Pipeline) History(id string) []domain.Message {
	return p.sessions.Messages(id)
}

// ActiveSessionCount reports live sessions after evicting expired ones.
func (p *Pipeline) ActiveSessionCount() int {
	return p.sessions.ActiveSessionCount()
}

// Reset removes every stored record.
func (p *Pipeline) Reset(ctx context.Context) error {
	p.logger.Warn("clearing vector store")
	return p.store.Clear(ctx)
}

// Close releases the vector store.
func (p *Pipeline) Close() error {
	return p.store.Close()
}
