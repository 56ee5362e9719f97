//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/socratic-qa/internal/chunker"
)

// setupTestStorage creates a Qdrant index on a throwaway collection.
// Skips test if Qdrant is not running.
func setupTestStorage(t *testing.T) *Qdrant {
	t.Helper()
	s, err := NewQdrant(context.Background(), QdrantOptions{
		Host:       "localhost",
		Port:       6334,
		Collection: "test_" + uuid.NewString()[:8],
		Model:      "fake-embed",
	})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() {
		_ = s.client.DeleteCollection(context.Background(), s.collection)
		_ = s.Close()
	})
	return s
}

func qdrantRecord(text string, vec ...float32) Record {
	return Record{
		Chunk: chunker.Chunk{
			ID:       uuid.NewString(),
			Text:     text,
			Metadata: map[string]any{"source": "republic.txt", "chunk_index": 0},
		},
		Vector: vec,
	}
}

func TestQdrant_AddAndSearch(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	east := qdrantRecord("east", 1, 0, 0)
	north := qdrantRecord("north", 0, 1, 0)
	require.NoError(t, s.Add(ctx, []Record{east, north}))
	assert.Equal(t, 2, s.Count())

	matches, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 4)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, east.Chunk.ID, matches[0].Chunk.ID)
	assert.Equal(t, "east", matches[0].Chunk.Text)
	assert.Equal(t, "republic.txt", matches[0].Chunk.Metadata["source"])
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestQdrant_BatchUpsert(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	records := make([]Record, 250)
	for i := range records {
		records[i] = qdrantRecord("chunk", float32(i+1), 1)
	}
	require.NoError(t, s.Add(ctx, records))
	assert.Equal(t, 250, s.Count())
}

func TestQdrant_DimensionValidation(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []Record{qdrantRecord("a", 1, 0)}))
	err := s.Add(ctx, []Record{qdrantRecord("b", 1, 0, 0)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQdrant_EmptySearch(t *testing.T) {
	s := setupTestStorage(t)
	matches, err := s.Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
