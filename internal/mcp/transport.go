package mcp

import (
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPOptions tunes the streamable HTTP transport mounted at /mcp.
type HTTPOptions struct {
	// Sessions keeps per-client sessions; the tools are request/response only,
	// so the default is stateless.
	Sessions bool
	// JSONResponse answers POSTs with application/json instead of an SSE stream.
	JSONResponse bool
	Logger       *slog.Logger
}

// NewHTTPHandler serves every request with the same server instance.
func NewHTTPHandler(server *Server, opts HTTPOptions) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{
		Stateless:    !opts.Sessions,
		JSONResponse: opts.JSONResponse,
		Logger:       opts.Logger,
	})
}
