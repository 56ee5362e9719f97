package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/socratic-qa/internal/loader"
	"github.com/bull/socratic-qa/internal/rag"
	"github.com/bull/socratic-qa/internal/storage"
)

const maxSearchResults = 20

// makeAskHandler creates the ask tool handler.
func makeAskHandler(answerer *rag.Answerer) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		answer, err := answerer.Ask(ctx, input.Question)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("failed to answer: %w", err)
		}

		sources := make([]Source, 0, len(answer.Sources))
		for _, s := range answer.Sources {
			meta := s.Metadata
			if meta == nil {
				meta = map[string]any{}
			}
			sources = append(sources, Source{PageContent: s.Text, Metadata: meta})
		}
		return nil, AskOutput{Answer: answer.Text, Sources: sources}, nil
	}
}

// makeSearchHandler creates the search_passages tool handler.
// Search flow:
// 1. Embed the query with the index's embedder
// 2. Take the MaxResults nearest chunks
// 3. Drop chunks below MinScore
func makeSearchHandler(answerer *rag.Answerer) func(
	context.Context, *mcp.CallToolRequest, SearchPassagesInput,
) (*mcp.CallToolResult, SearchPassagesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchPassagesInput) (
		*mcp.CallToolResult, SearchPassagesOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = answerer.TopK()
		}
		maxResults = min(maxResults, maxSearchResults)

		matches, err := answerer.Retrieve(ctx, input.Query, maxResults)
		if errors.Is(err, rag.ErrEmptyIndex) {
			return nil, SearchPassagesOutput{
				Results: []Passage{},
				Message: "The index is empty. Add documents to the source directory and restart.",
			}, nil
		}
		if err != nil {
			return nil, SearchPassagesOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]Passage, 0, len(matches))
		for _, m := range matches {
			if m.Score < input.MinScore {
				continue
			}
			results = append(results, toPassage(m))
		}

		if len(results) == 0 {
			return nil, SearchPassagesOutput{
				Results: []Passage{},
				Message: "No matching passages found. Try broader search terms.",
			}, nil
		}
		return nil, SearchPassagesOutput{Results: results}, nil
	}
}

func toPassage(m storage.Match) Passage {
	p := Passage{Score: m.Score, Content: m.Chunk.Text}
	if src, ok := m.Chunk.Metadata[loader.MetaSource].(string); ok {
		p.Source = src
	}
	if section, ok := m.Chunk.Metadata[loader.MetaSection].(string); ok {
		p.Section = section
	}
	if page, ok := m.Chunk.Metadata[loader.MetaPage].(int); ok {
		p.Page = &page
	}
	return p
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(answerer *rag.Answerer, index storage.Index, backend string) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		return nil, StatusOutput{
			Backend:        backend,
			TotalChunks:    index.Count(),
			EmbeddingModel: index.EmbeddingModel(),
			TopK:           answerer.TopK(),
		}, nil
	}
}
