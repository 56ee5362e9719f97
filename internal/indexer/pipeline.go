// Package indexer builds the vector index from the document directory.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/socratic-qa/internal/chunker"
	"github.com/bull/socratic-qa/internal/embedding"
	"github.com/bull/socratic-qa/internal/loader"
	"github.com/bull/socratic-qa/internal/metrics"
	"github.com/bull/socratic-qa/internal/storage"
)

// DefaultBatchSize is the number of chunks embedded and stored per round.
const DefaultBatchSize = 500

// ErrModelMismatch is returned when the embedder differs from the model the index records.
var ErrModelMismatch = errors.New("embedder model does not match index")

// BuildResult contains statistics about an indexing operation.
type BuildResult struct {
	Documents int
	Chunks    int
	Duration  time.Duration
}

// Pipeline orchestrates loading, chunking, embedding and storage.
type Pipeline struct {
	loader    *loader.Loader
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	index     storage.Index
	batchSize int
	logger    *slog.Logger
}

// NewPipeline creates a new indexing pipeline with the given components.
func NewPipeline(
	loader *loader.Loader,
	chunker *chunker.Chunker,
	embedder embedding.Embedder,
	index storage.Index,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// Build loads every supported file in dir and indexes its chunks.
// Any failure aborts the build; the index is then only partially filled and should be discarded.
func (p *Pipeline) Build(ctx context.Context, dir string) (*BuildResult, error) {
	start := time.Now()

	if p.index.EmbeddingModel() != p.embedder.Model() {
		return nil, fmt.Errorf("%w: index %q, embedder %q", ErrModelMismatch, p.index.EmbeddingModel(), p.embedder.Model())
	}

	docs, err := p.loader.Load(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	chunks, err := p.chunker.Split(docs)
	if err != nil {
		return nil, fmt.Errorf("chunk documents: %w", err)
	}

	for i := 0; i < len(chunks); i += p.batchSize {
		end := min(i+p.batchSize, len(chunks))
		if err := p.indexBatch(ctx, chunks[i:end]); err != nil {
			return nil, fmt.Errorf("index chunks %d-%d: %w", i, end, err)
		}
		p.logger.Debug("Indexed batch", "from", i, "to", end, "total", len(chunks))
	}

	metrics.IndexedChunks.Set(float64(p.index.Count()))

	result := &BuildResult{
		Documents: len(docs),
		Chunks:    len(chunks),
		Duration:  time.Since(start),
	}
	p.logger.Info("Index ready",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"model", p.embedder.Model(),
		"duration", result.Duration,
	)
	if result.Chunks == 0 {
		p.logger.Warn("No content indexed; questions will be rejected until documents are added", "dir", dir)
	}
	return result, nil
}

func (p *Pipeline) indexBatch(ctx context.Context, chunks []chunker.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embeddings: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]storage.Record, len(chunks))
	for i, c := range chunks {
		records[i] = storage.Record{Chunk: c, Vector: vectors[i]}
	}
	if err := p.index.Add(ctx, records); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}
