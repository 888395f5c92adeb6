package vectorstore

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
)

type memoryRecord struct {
	id      string
	vector  []float32
	segment domain.Segment
}

// MemoryStore is a brute-force in-process store. Records keep insertion
// order, which breaks score ties.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   []memoryRecord
	nextID    int
	logger    *slog.Logger
}

// NewMemoryStore creates an empty store. Call Init before use.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logger: log.NewModuleLogger("vectorstore", "memory")}
}

func (s *MemoryStore) Init(_ context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := CheckDimension(s.dimension, dimension); err != nil {
		return err
	}
	s.dimension = dimension
	return nil
}

func (s *MemoryStore) AddAll(_ context.Context, vectors [][]float32, segments []domain.Segment) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ValidateBatch(s.dimension, vectors, segments); err != nil {
		return nil, err
	}

	ids := make([]string, len(vectors))
	for i, v := range vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		s.nextID++
		ids[i] = strconv.Itoa(s.nextID)
		s.records = append(s.records, memoryRecord{id: ids[i], vector: vec, segment: segments[i]})
	}
	s.logger.Debug("records added", "count", len(ids), "total", len(s.records))
	return ids, nil
}

func (s *MemoryStore) Search(_ context.Context, req SearchRequest) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := CheckQuery(s.dimension, req.Vector); err != nil {
		return nil, err
	}
	if req.MaxResults <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0)
	for _, r := range s.records {
		if req.CompanyName != "" && r.segment.Metadata.CompanyName != req.CompanyName {
			continue
		}
		score := RelevanceScore(CosineSimilarity(req.Vector, r.vector))
		if score < req.MinScore {
			continue
		}
		matches = append(matches, Match{ID: r.id, Score: score, Segment: r.segment})
	}

	SortMatches(matches)
	if len(matches) > req.MaxResults {
		matches = matches[:req.MaxResults]
	}
	return matches, nil
}

func (s *MemoryStore) Contains(_ context.Context, sha1 string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.segment.Metadata.SHA1 == sha1 {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) Close() error { return nil }
