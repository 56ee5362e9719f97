// Package api exposes the question-answering HTTP interface and the static frontend.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bull/socratic-qa/internal/metrics"
	"github.com/bull/socratic-qa/internal/rag"
	"github.com/bull/socratic-qa/internal/storage"
)

// App is the application context shared by every handler. It is built once at startup.
type App struct {
	Answerer  *rag.Answerer
	Index     storage.Index
	Backend   string // index backend name reported by /health
	StaticDir string
	MCP       http.Handler // optional, mounted at /mcp
	Logger    *slog.Logger
}

// NewRouter builds the gin engine. Explicit routes always win over the static
// fallback, which only receives requests no route matched.
func NewRouter(app *App) *gin.Engine {
	if app.Logger == nil {
		app.Logger = slog.Default()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(app.Logger))

	router.POST("/ask", app.handleAsk)
	router.GET("/health", app.handleHealth)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if app.MCP != nil {
		router.Any("/mcp", gin.WrapH(app.MCP))
	}

	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed"})
	})
	router.NoRoute(staticHandler(app.StaticDir))

	return router
}
