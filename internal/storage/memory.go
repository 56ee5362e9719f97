package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/bull/socratic-qa/internal/chunker"
)

// Memory is an in-process exact nearest-neighbour index backed by a chromem collection.
// chromem keeps only string metadata, so the typed chunks live beside it keyed by ID.
type Memory struct {
	mu         sync.RWMutex
	collection *chromem.Collection
	chunks     map[string]chunker.Chunk
	order      map[string]int // insertion position, breaks score ties
	model      string
	dim        int
}

// NewMemory creates an empty in-memory index.
func NewMemory(name, model string) (*Memory, error) {
	if name == "" {
		name = "documents"
	}
	collection, err := chromem.NewDB().CreateCollection(name, map[string]string{"embedding_model": model}, precomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Memory{
		collection: collection,
		chunks:     make(map[string]chunker.Chunk),
		order:      make(map[string]int),
		model:      model,
	}, nil
}

// precomputedOnly rejects chromem's own embedding path; every record arrives with a vector.
func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings must be computed before adding to the index")
}

// Add implements Index.
func (m *Memory) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]chromem.Document, 0, len(records))
	seen := make(map[string]bool, len(records))
	dim := m.dim
	for i, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("record %d: empty vector", i)
		}
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(r.Vector), dim)
		}
		if _, exists := m.chunks[r.Chunk.ID]; exists || seen[r.Chunk.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, r.Chunk.ID)
		}
		seen[r.Chunk.ID] = true

		docs = append(docs, chromem.Document{
			ID:        r.Chunk.ID,
			Content:   r.Chunk.Text,
			Embedding: r.Vector,
		})
	}

	if err := m.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	for _, r := range records {
		m.order[r.Chunk.ID] = len(m.chunks)
		m.chunks[r.Chunk.ID] = r.Chunk
	}
	m.dim = dim
	return nil
}

// Search implements Index.
func (m *Memory) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, ErrInvalidLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.chunks)
	if n == 0 {
		return nil, nil
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), m.dim)
	}

	results, err := m.collection.QueryEmbedding(ctx, vector, min(k, n), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{Chunk: m.chunks[r.ID], Score: float64(r.Similarity)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return m.order[matches[i].Chunk.ID] < m.order[matches[j].Chunk.ID]
	})
	return matches, nil
}

// Count implements Index.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// EmbeddingModel implements Index.
func (m *Memory) EmbeddingModel() string { return m.model }

// Health implements Index. The in-process index is always available.
func (m *Memory) Health(context.Context) error { return nil }

// Close implements Index.
func (m *Memory) Close() error { return nil }
