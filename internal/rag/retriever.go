package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
	"github.com/report-qa/cli/internal/vectorstore"
)

// retrieveAllLimit bounds RetrieveAll, which has no bulk fetch.
const retrieveAllLimit = 1000

// QueryEmbedder embeds retrieval queries.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever finds passages similar to a query.
type Retriever struct {
	embedder        QueryEmbedder
	store           vectorstore.Store
	filterByCompany bool
	logger          *slog.Logger
}

// NewRetriever creates a retriever. When filterByCompany is false the scope
// is only logged and every company's records are searched.
func NewRetriever(embedder QueryEmbedder, store vectorstore.Store, filterByCompany bool) *Retriever {
	return &Retriever{
		embedder:        embedder,
		store:           store,
		filterByCompany: filterByCompany,
		logger:          log.NewModuleLogger("rag", "retriever"),
	}
}

// RetrieveByScope embeds query and returns up to topN passages, best first.
func (r *Retriever) RetrieveByScope(ctx context.Context, scope, query string, topN int) ([]domain.RetrievalResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	req := vectorstore.SearchRequest{
		Vector:     vec,
		MaxResults: topN,
		MinScore:   0,
	}
	if r.filterByCompany {
		req.CompanyName = scope
	}

	matches, err := r.store.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	results := make([]domain.RetrievalResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, domain.RetrievalResult{
			Score:       m.Score,
			Page:        m.Segment.Metadata.Page,
			Text:        m.Segment.Text,
			SHA1:        m.Segment.Metadata.SHA1,
			CompanyName: m.Segment.Metadata.CompanyName,
		})
	}

	r.logger.Info("retrieval completed",
		"scope", scope,
		"filtered", r.filterByCompany,
		"top_n", topN,
		"results", len(results),
	)
	return results, nil
}

// RetrieveAll approximates fetching everything for scope by querying with
// the scope itself and a large limit.
func (r *Retriever) RetrieveAll(ctx context.Context, scope string) ([]domain.RetrievalResult, error) {
	return r.RetrieveByScope(ctx, scope, scope, retrieveAllLimit)
}
