package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/socratic-qa/internal/chunker"
)

func TestChunkPayloadRoundTrip(t *testing.T) {
	in := chunker.Chunk{
		ID:   "1f0c9e5a-6a4f-5d43-8d1d-7c1b3f2a9e10",
		Text: "Know thyself.",
		Metadata: map[string]any{
			"source":      "spiritual_database/apology.pdf",
			"page":        4,
			"total_pages": 30,
			"chunk_index": 0,
		},
	}

	payload, err := chunkPayload(in, "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", payload["embedding_model"].GetStringValue())

	out := chunkFromPayload(in.ID, payload)
	assert.Equal(t, in, out)
}

func TestChunkPayload_RejectsInvalidUTF8(t *testing.T) {
	_, err := chunkPayload(chunker.Chunk{ID: "x", Text: "\xff\xfe"}, "m")
	assert.Error(t, err)
}

func TestChunkFromPayload_MissingMetadata(t *testing.T) {
	out := chunkFromPayload("id", nil)
	assert.Equal(t, "id", out.ID)
	assert.Empty(t, out.Text)
	assert.NotNil(t, out.Metadata)
}
