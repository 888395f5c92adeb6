package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
)

// Embedder is an embedding capability. EmbedBatch must return one vector per
// input, in order, and accept at most MaxBatchSize inputs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	MaxBatchSize() int
}

// Gateway sits in front of an Embedder. It rejects blank input, drops blank
// batch entries, splits batches to the provider's cap and optionally paces
// requests.
type Gateway struct {
	embedder Embedder
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewGateway wraps embedder. requestsPerSecond <= 0 disables pacing.
func NewGateway(embedder Embedder, requestsPerSecond float64) *Gateway {
	g := &Gateway{
		embedder: embedder,
		logger:   log.NewModuleLogger("embeddings", "gateway"),
	}
	if requestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return g
}

// Dimension reports the vector length produced by the embedder.
func (g *Gateway) Dimension() int {
	return g.embedder.Dimension()
}

// Embed embeds one text. Blank text fails with domain.ErrEmptyInput.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	return vec, nil
}

// EmbedBatch embeds texts in order, skipping blank entries. The result has
// one vector per non-blank input.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	kept := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, t)
		}
	}
	if dropped := len(texts) - len(kept); dropped > 0 {
		g.logger.Debug("dropped blank texts", "dropped", dropped)
	}
	if len(kept) == 0 {
		return [][]float32{}, nil
	}

	batchSize := g.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(kept)
	}
	totalBatches := (len(kept) + batchSize - 1) / batchSize

	vectors := make([][]float32, 0, len(kept))
	for i := 0; i < len(kept); i += batchSize {
		end := min(i+batchSize, len(kept))
		batch := kept[i:end]
		batchNum := i/batchSize + 1

		if err := g.wait(ctx); err != nil {
			return nil, err
		}

		g.logger.Debug("embedding batch",
			"batch", batchNum,
			"total_batches", totalBatches,
			"batch_size", len(batch),
		)

		out, err := g.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d: %w", batchNum, err)
		}
		if len(out) != len(batch) {
			return nil, fmt.Errorf("embed batch %d: got %d vectors for %d texts", batchNum, len(out), len(batch))
		}
		vectors = append(vectors, out...)
	}

	g.logger.Info("embedded texts", "count", len(vectors), "batches", totalBatches)
	return vectors, nil
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("embedding rate limit wait: %w", err)
	}
	return nil
}
