package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
	"github.com/report-qa/cli/internal/vectorstore"
)

// Store is a PostgreSQL + pgvector vector store.
type Store struct {
	db     *DB
	name   string
	q      queries
	logger *slog.Logger

	mu        sync.RWMutex
	dimension int
}

var _ vectorstore.Store = (*Store)(nil)

// NewStore uses table for embedding records. The store owns db and closes
// it on Close.
func NewStore(db *DB, table string) *Store {
	return &Store{
		db:     db,
		name:   table,
		q:      newQueries(table),
		logger: log.NewModuleLogger("db", "store"),
	}
}

// Init enables the vector extension and creates the table when absent. An
// existing table declared with another dimension is rejected.
func (s *Store) Init(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := vectorstore.CheckDimension(s.dimension, dimension); err != nil {
		return err
	}

	if _, err := s.db.pool.Exec(ctx, createExtension); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := s.db.pool.Exec(ctx, s.q.createTable(dimension)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.name, err)
	}
	if _, err := s.db.pool.Exec(ctx, s.q.createIndex()); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", s.name, err)
	}

	var existing int
	if err := s.db.pool.QueryRow(ctx, s.q.columnDimension(), s.q.table).Scan(&existing); err != nil {
		return fmt.Errorf("failed to read dimension of %s: %w", s.name, err)
	}
	if existing > 0 && existing != dimension {
		return &domain.DimensionMismatchError{Expected: existing, Actual: dimension}
	}

	s.dimension = dimension
	s.logger.Info("table ready", "table", s.name, "dimension", dimension)
	return nil
}

// AddAll inserts all records in one batch.
func (s *Store) AddAll(ctx context.Context, vectors [][]float32, segments []domain.Segment) ([]string, error) {
	s.mu.RLock()
	dimension := s.dimension
	s.mu.RUnlock()
	if err := vectorstore.ValidateBatch(dimension, vectors, segments); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(vectors))
	batch := &pgx.Batch{}
	for i, v := range vectors {
		id := uuid.New()
		ids[i] = id.String()
		batch.Queue(s.q.insert(), id, pgvector.NewVector(v), segments[i].Text, segments[i].Metadata)
	}

	br := s.db.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(vectors); i++ {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	s.logger.Debug("records inserted", "table", s.name, "count", len(ids))
	return ids, nil
}

// Search runs a cosine similarity query.
func (s *Store) Search(ctx context.Context, req vectorstore.SearchRequest) ([]vectorstore.Match, error) {
	s.mu.RLock()
	dimension := s.dimension
	s.mu.RUnlock()
	if err := vectorstore.CheckQuery(dimension, req.Vector); err != nil {
		return nil, err
	}
	if req.MaxResults <= 0 {
		return []vectorstore.Match{}, nil
	}

	rows, err := s.db.pool.Query(ctx, s.q.search(),
		pgvector.NewVector(req.Vector), req.MaxResults, req.CompanyName, req.MinScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", s.name, err)
	}
	defer rows.Close()

	matches := make([]vectorstore.Match, 0, req.MaxResults)
	for rows.Next() {
		var (
			id uuid.UUID
			m  vectorstore.Match
		)
		if err := rows.Scan(&id, &m.Segment.Text, &m.Segment.Metadata, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.ID = id.String()
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Contains reports whether a document with sha1 has been stored.
func (s *Store) Contains(ctx context.Context, sha1 string) (bool, error) {
	var found bool
	if err := s.db.pool.QueryRow(ctx, s.q.exists(), sha1).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check document %s: %w", sha1, err)
	}
	return found, nil
}

// Clear truncates the table.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.pool.Exec(ctx, s.q.truncate()); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", s.name, err)
	}
	s.logger.Info("table cleared", "table", s.name)
	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
