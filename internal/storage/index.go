// Package storage holds embedded chunks and answers nearest-neighbour queries over them.
package storage

import (
	"context"
	"fmt"

	"github.com/bull/socratic-qa/internal/chunker"
	"github.com/bull/socratic-qa/internal/config"
)

// Record is a chunk paired with its embedding vector.
type Record struct {
	Chunk  chunker.Chunk
	Vector []float32
}

// Match is a search hit. Score is cosine similarity, higher is closer.
type Match struct {
	Chunk chunker.Chunk
	Score float64
}

// Index is a vector index built once at startup and read concurrently afterwards.
type Index interface {
	// Add stores records. It is only called while building.
	Add(ctx context.Context, records []Record) error
	// Search returns at most k matches ordered most similar first.
	// An empty index yields no matches and no error.
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	Count() int
	// EmbeddingModel is the model the stored vectors were produced with.
	EmbeddingModel() string
	Health(ctx context.Context) error
	Close() error
}

// Open creates the backend selected by cfg. model is recorded as the index's embedding model.
func Open(ctx context.Context, cfg config.IndexConfig, model string) (Index, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		m, err := NewMemory(cfg.Collection, model)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.BackendQdrant:
		q, err := NewQdrant(ctx, QdrantOptions{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Collection,
			Model:      model,
		})
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}
