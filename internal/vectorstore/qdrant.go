package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/log"
)

// QdrantConfig holds the gRPC connection settings of a Qdrant server.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantStore keeps records in a Qdrant collection with cosine distance.
// A monotonically increasing seq payload field records insertion order.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger

	mu        sync.Mutex
	dimension int
	seq       int64
}

// NewQdrantStore connects to Qdrant. Call Init before use.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		logger:     log.NewModuleLogger("vectorstore", "qdrant"),
	}, nil
}

func (s *QdrantStore) Init(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := CheckDimension(s.dimension, dimension); err != nil {
		return err
	}

	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	found := false
	for _, name := range existing {
		if name == s.collection {
			found = true
			break
		}
	}

	if found {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("failed to get collection %s: %w", s.collection, err)
		}
		size := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		if size != 0 && size != dimension {
			return &domain.DimensionMismatchError{Expected: size, Actual: dimension}
		}
		count, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.collection,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to count points: %w", err)
		}
		s.seq = int64(count)
	} else if err := s.createCollection(ctx, dimension); err != nil {
		return err
	}

	s.dimension = dimension
	s.logger.Info("collection ready", "collection", s.collection, "dimension", dimension, "points", s.seq)
	return nil
}

func (s *QdrantStore) createCollection(ctx context.Context, dimension int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	s.seq = 0
	return nil
}

func (s *QdrantStore) AddAll(ctx context.Context, vectors [][]float32, segments []domain.Segment) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ValidateBatch(s.dimension, vectors, segments); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(vectors))
	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		ids[i] = uuid.NewString()
		md := segments[i].Metadata
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(ids[i]),
			Vectors: qdrant.NewVectors(v...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":         segments[i].Text,
				"chunk_id":     int64(md.ChunkID),
				"page":         int64(md.Page),
				"company_name": md.CompanyName,
				"sha1":         md.SHA1,
				"type":         md.Type,
				"seq":          s.seq + int64(i),
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert points: %w", err)
	}
	s.seq += int64(len(vectors))
	return ids, nil
}

func (s *QdrantStore) Search(ctx context.Context, req SearchRequest) ([]Match, error) {
	s.mu.Lock()
	dimension := s.dimension
	s.mu.Unlock()
	if err := CheckQuery(dimension, req.Vector); err != nil {
		return nil, err
	}
	if req.MaxResults <= 0 {
		return []Match{}, nil
	}

	limit := uint64(req.MaxResults)
	// qdrant scores raw cosine; translate the [0, 1] floor back
	threshold := float32(2*req.MinScore - 1)
	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if req.CompanyName != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("company_name", req.CompanyName)},
		}
	}

	hits, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	type ranked struct {
		match Match
		seq   int64
	}
	rankedHits := make([]ranked, 0, len(hits))
	for _, hit := range hits {
		score := RelevanceScore(float64(hit.GetScore()))
		if score < req.MinScore {
			continue
		}
		payload := hit.GetPayload()
		rankedHits = append(rankedHits, ranked{
			match: Match{
				ID:      hit.GetId().GetUuid(),
				Score:   score,
				Segment: segmentFromPayload(payload),
			},
			seq: payload["seq"].GetIntegerValue(),
		})
	}

	sort.SliceStable(rankedHits, func(i, j int) bool {
		if rankedHits[i].match.Score != rankedHits[j].match.Score {
			return rankedHits[i].match.Score > rankedHits[j].match.Score
		}
		return rankedHits[i].seq < rankedHits[j].seq
	})

	matches := make([]Match, len(rankedHits))
	for i, r := range rankedHits {
		matches[i] = r.match
	}
	return matches, nil
}

func (s *QdrantStore) Contains(ctx context.Context, sha1 string) (bool, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("sha1", sha1)},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to count points: %w", err)
	}
	return count > 0, nil
}

// Clear drops and recreates the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension <= 0 {
		return ErrNotInitialized
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", s.collection, err)
	}
	return s.createCollection(ctx, s.dimension)
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func segmentFromPayload(payload map[string]*qdrant.Value) domain.Segment {
	return domain.Segment{
		Text: payload["text"].GetStringValue(),
		Metadata: domain.Metadata{
			ChunkID:     int(payload["chunk_id"].GetIntegerValue()),
			Page:        int(payload["page"].GetIntegerValue()),
			CompanyName: payload["company_name"].GetStringValue(),
			SHA1:        payload["sha1"].GetStringValue(),
			Type:        payload["type"].GetStringValue(),
		},
	}
}
