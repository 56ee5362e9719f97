package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/socratic-qa/internal/chunker"
	"github.com/bull/socratic-qa/internal/embedding/embeddingtest"
	"github.com/bull/socratic-qa/internal/llm/llmtest"
	"github.com/bull/socratic-qa/internal/logging"
	"github.com/bull/socratic-qa/internal/rag"
	"github.com/bull/socratic-qa/internal/storage"
)

func newTestServer(t *testing.T, completer *llmtest.Fake, texts ...string) *Server {
	t.Helper()
	embedder := &embeddingtest.Fake{}
	idx, err := storage.NewMemory("test", embedder.Model())
	require.NoError(t, err)

	var records []storage.Record
	for i, text := range texts {
		meta := map[string]any{"source": "spiritual_database/meno.txt", "chunk_index": i}
		if i == 0 {
			meta = map[string]any{"source": "spiritual_database/republic.pdf", "page": 3, "chunk_index": 0}
		}
		records = append(records, storage.Record{
			Chunk:  chunker.Chunk{ID: string(rune('a' + i)), Text: text, Metadata: meta},
			Vector: embeddingtest.Vector(text),
		})
	}
	if len(records) > 0 {
		require.NoError(t, idx.Add(context.Background(), records))
	}

	answerer, err := rag.New(idx, embedder, completer, 2, logging.Discard())
	require.NoError(t, err)

	return NewServer(&Config{Answerer: answerer, Index: idx, Backend: "memory"})
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ss, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if !res.IsError && out != nil {
		require.NotEmpty(t, res.Content)
		text, ok := res.Content[0].(*mcp.TextContent)
		require.True(t, ok, "expected text content")
		require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	}
	return res
}

func TestListTools(t *testing.T) {
	cs := connect(t, newTestServer(t, &llmtest.Fake{}))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask", "search_passages", "get_index_status"}, names)
}

func TestAskTool(t *testing.T) {
	completer := &llmtest.Fake{Reply: "The sky is blue. Why do you ask?"}
	cs := connect(t, newTestServer(t, completer, "The sky is blue."))

	var out AskOutput
	res := callTool(t, cs, "ask", map[string]any{"question": "What color is the sky?"}, &out)
	require.False(t, res.IsError)

	assert.Equal(t, "The sky is blue. Why do you ask?", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "The sky is blue.", out.Sources[0].PageContent)
	assert.Equal(t, "spiritual_database/republic.pdf", out.Sources[0].Metadata["source"])
}

func TestAskTool_EmptyIndexIsToolError(t *testing.T) {
	completer := &llmtest.Fake{Reply: "unused"}
	cs := connect(t, newTestServer(t, completer))

	res := callTool(t, cs, "ask", map[string]any{"question": "What is justice?"}, nil)
	assert.True(t, res.IsError)
	assert.Empty(t, completer.Prompts())
}

func TestSearchPassagesTool(t *testing.T) {
	completer := &llmtest.Fake{Reply: "unused"}
	cs := connect(t, newTestServer(t, completer,
		"justice is the virtue of the soul",
		"can virtue be taught to the young",
		"the cave and the shadows on the wall",
	))

	t.Run("defaults to top k", func(t *testing.T) {
		var out SearchPassagesOutput
		res := callTool(t, cs, "search_passages", map[string]any{"query": "virtue taught"}, &out)
		require.False(t, res.IsError)
		require.Len(t, out.Results, 2)
		assert.Equal(t, "can virtue be taught to the young", out.Results[0].Content)
		assert.Equal(t, "spiritual_database/meno.txt", out.Results[0].Source)
		assert.Nil(t, out.Results[0].Page)
		assert.GreaterOrEqual(t, out.Results[0].Score, out.Results[1].Score)
	})

	t.Run("page reported for pdf sources", func(t *testing.T) {
		var out SearchPassagesOutput
		res := callTool(t, cs, "search_passages", map[string]any{"query": "justice soul", "max_results": 1}, &out)
		require.False(t, res.IsError)
		require.Len(t, out.Results, 1)
		require.NotNil(t, out.Results[0].Page)
		assert.Equal(t, 3, *out.Results[0].Page)
	})

	t.Run("min score filters everything", func(t *testing.T) {
		var out SearchPassagesOutput
		res := callTool(t, cs, "search_passages", map[string]any{"query": "virtue", "min_score": 1.01}, &out)
		require.False(t, res.IsError)
		assert.Empty(t, out.Results)
		assert.Contains(t, out.Message, "No matching passages")
	})

	assert.Empty(t, completer.Prompts(), "search must not call the model")
}

func TestSearchPassagesTool_EmptyIndex(t *testing.T) {
	cs := connect(t, newTestServer(t, &llmtest.Fake{}))

	var out SearchPassagesOutput
	res := callTool(t, cs, "search_passages", map[string]any{"query": "anything"}, &out)
	require.False(t, res.IsError)
	assert.Empty(t, out.Results)
	assert.Contains(t, out.Message, "index is empty")
}

func TestIndexStatusTool(t *testing.T) {
	cs := connect(t, newTestServer(t, &llmtest.Fake{}, "one", "two", "three"))

	var out StatusOutput
	res := callTool(t, cs, "get_index_status", map[string]any{}, &out)
	require.False(t, res.IsError)
	assert.Equal(t, "memory", out.Backend)
	assert.Equal(t, 3, out.TotalChunks)
	assert.Equal(t, "fake-embed", out.EmbeddingModel)
	assert.Equal(t, 2, out.TopK)
}

func TestHTTPHandler(t *testing.T) {
	ts := httptest.NewServer(NewHTTPHandler(newTestServer(t, &llmtest.Fake{}, "one"), HTTPOptions{JSONResponse: true}))
	defer ts.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "http-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{Endpoint: ts.URL}, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Tools, 3)

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode, "plain GET without MCP headers is rejected")
}
