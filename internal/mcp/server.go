package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/socratic-qa/internal/rag"
	"github.com/bull/socratic-qa/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Answerer *rag.Answerer
	Index    storage.Index
	Backend  string
	Version  string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "socratic-qa",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask the Socratic dialogue agent a question. Answers from the indexed philosophical texts and ends with a follow-up question. Returns the answer and the passages it used.",
	}, makeAskHandler(cfg.Answerer))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_passages",
		Description: "Semantically search the indexed texts. Returns the closest passages with similarity scores, without generating an answer.",
	}, makeSearchHandler(cfg.Answerer))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current status of the passage index: backend, chunk count and embedding model.",
	}, makeStatusHandler(cfg.Answerer, cfg.Index, cfg.Backend))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
