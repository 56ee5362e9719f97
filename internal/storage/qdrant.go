package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/socratic-qa/internal/chunker"
)

const upsertBatchSize = 100

// QdrantOptions configures the Qdrant backend.
type QdrantOptions struct {
	Host       string
	Port       int // gRPC port, 6334 by default
	Collection string
	Model      string
}

// Qdrant stores chunks in a Qdrant collection owned by this process.
// The collection is dropped and recreated on the first Add of a build.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	model      string

	mu      sync.RWMutex
	dim     int
	count   int
	created bool
}

// NewQdrant creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrant(ctx context.Context, opts QdrantOptions) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: opts.Host,
		Port: opts.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Qdrant{
		client:     client,
		collection: opts.Collection,
		model:      opts.Model,
	}

	if err := s.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	return s, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
func (s *Qdrant) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error { return s.Health(ctx) }, backoff.WithContext(newBackOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *Qdrant) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// recreateCollection drops any previous collection and creates an empty one sized for dim.
func (s *Qdrant) recreateCollection(ctx context.Context, dim int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *Qdrant) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx))
}

// Add implements Index. Chunks are batched in groups of 100.
func (s *Qdrant) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	if dim == 0 {
		dim = len(records[0].Vector)
	}
	for i, r := range records {
		if len(r.Vector) != dim || dim == 0 {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(r.Vector), dim)
		}
	}

	if !s.created {
		if err := s.recreateCollection(ctx, dim); err != nil {
			return err
		}
		s.created = true
		s.dim = dim
	}

	for i := 0; i < len(records); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(records))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, r := range records[i:end] {
			payload, err := chunkPayload(r.Chunk, s.model)
			if err != nil {
				return fmt.Errorf("chunk %s payload: %w", r.Chunk.ID, err)
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(r.Chunk.ID),
				Vectors: qdrant.NewVectors(r.Vector...),
				Payload: payload,
			})
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
		s.count += len(points)
	}
	return nil
}

// Search implements Index.
func (s *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	count, dim := s.count, s.dim
	s.mu.RUnlock()

	if count == 0 {
		return nil, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), dim)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, result := range results {
		matches = append(matches, Match{
			Chunk: chunkFromPayload(result.GetId().GetUuid(), result.GetPayload()),
			Score: float64(result.GetScore()),
		})
	}
	return matches, nil
}

// Count implements Index.
func (s *Qdrant) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// EmbeddingModel implements Index.
func (s *Qdrant) EmbeddingModel() string { return s.model }

// Close closes the Qdrant client connection.
func (s *Qdrant) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func chunkPayload(c chunker.Chunk, model string) (map[string]*qdrant.Value, error) {
	return qdrant.TryValueMap(map[string]any{
		"content":         c.Text,
		"metadata":        c.Metadata,
		"embedding_model": model,
	})
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) chunker.Chunk {
	c := chunker.Chunk{
		ID:   id,
		Text: payload["content"].GetStringValue(),
	}
	if meta := payload["metadata"].GetStructValue(); meta != nil {
		c.Metadata = structToMap(meta)
	} else {
		c.Metadata = map[string]any{}
	}
	return c
}

func structToMap(s *qdrant.Struct) map[string]any {
	out := make(map[string]any, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = valueToAny(v)
	}
	return out
}

// valueToAny reverses qdrant.NewValue. Integers come back as int to match the loader's types.
func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return int(kind.IntegerValue)
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		return structToMap(kind.StructValue)
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}
