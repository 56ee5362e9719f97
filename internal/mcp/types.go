// Package mcp exposes the question-answering service as Model Context Protocol tools.
package mcp

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"The question to put to the Socratic agent"`
}

// AskOutput mirrors the /ask HTTP response.
type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source is one retrieved chunk.
type Source struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// SearchPassagesInput defines the input parameters for the search_passages tool.
type SearchPassagesInput struct {
	Query string `json:"query" jsonschema:"The semantic search query for finding relevant passages"`
	// MaxResults is the maximum number of passages to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"Maximum number of passages to return (1-20)"`
	// MinScore is the minimum relevance threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"Minimum cosine similarity a passage must reach (0-1)"`
}

// SearchPassagesOutput contains the search results.
type SearchPassagesOutput struct {
	Results []Passage `json:"results"`
	// Message provides informational context (e.g., "No matching passages found").
	Message string `json:"message,omitempty"`
}

// Passage is a scored chunk returned without any model call.
type Passage struct {
	Source  string  `json:"source"`
	Page    *int    `json:"page,omitempty"` // 0-based, PDF sources only
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the live index.
type StatusOutput struct {
	Backend        string `json:"backend"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddingModel string `json:"embedding_model"`
	TopK           int    `json:"top_k"`
}
