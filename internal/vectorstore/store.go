// Package vectorstore defines the vector store contract and its in-process
// and Qdrant implementations. The PostgreSQL implementation lives in
// internal/db.
//
// Every backend reports cosine similarity mapped onto [0, 1] as
// (1 + cos) / 2, so a MinScore of 0.5 keeps non-negative similarity.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/report-qa/cli/internal/domain"
)

// ErrNotInitialized is returned when a store is used before Init.
var ErrNotInitialized = errors.New("vector store not initialized")

// Store persists embedding records and answers similarity queries.
type Store interface {
	// Init fixes the vector dimension and creates backing storage if needed.
	Init(ctx context.Context, dimension int) error
	// AddAll stores one record per vector. Any vector whose length differs
	// from the dimension fails the whole call with a DimensionMismatchError.
	AddAll(ctx context.Context, vectors [][]float32, segments []domain.Segment) ([]string, error)
	// Search returns at most MaxResults matches with Score >= MinScore,
	// ordered by score descending and then by insertion order.
	Search(ctx context.Context, req SearchRequest) ([]Match, error)
	// Contains reports whether any record carries the given document sha1.
	Contains(ctx context.Context, sha1 string) (bool, error)
	// Clear removes every record, keeping the dimension.
	Clear(ctx context.Context) error
	Close() error
}

// SearchRequest is a similarity query. An empty CompanyName searches all
// records.
type SearchRequest struct {
	Vector      []float32
	MaxResults  int
	MinScore    float64
	CompanyName string
}

// Match is one search hit.
type Match struct {
	ID      string
	Score   float64
	Segment domain.Segment
}

// ValidateBatch checks the AddAll preconditions shared by all backends.
func ValidateBatch(dimension int, vectors [][]float32, segments []domain.Segment) error {
	if dimension <= 0 {
		return ErrNotInitialized
	}
	if len(vectors) != len(segments) {
		return fmt.Errorf("got %d vectors for %d segments", len(vectors), len(segments))
	}
	for _, v := range vectors {
		if len(v) != dimension {
			return &domain.DimensionMismatchError{Expected: dimension, Actual: len(v)}
		}
	}
	return nil
}

// CheckQuery validates a search vector against the store dimension.
func CheckQuery(dimension int, vector []float32) error {
	if dimension <= 0 {
		return ErrNotInitialized
	}
	if len(vector) != dimension {
		return &domain.DimensionMismatchError{Expected: dimension, Actual: len(vector)}
	}
	return nil
}

// CheckDimension validates an Init call against an already fixed dimension.
func CheckDimension(current, requested int) error {
	if requested <= 0 {
		return fmt.Errorf("invalid vector dimension %d", requested)
	}
	if current > 0 && current != requested {
		return &domain.DimensionMismatchError{Expected: current, Actual: requested}
	}
	return nil
}

// RelevanceScore maps cosine similarity onto [0, 1].
func RelevanceScore(cosine float64) float64 {
	return (1 + cosine) / 2
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is a zero vector.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SortMatches orders matches by score descending, keeping the existing order
// among equal scores.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}
