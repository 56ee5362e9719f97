package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status         string `json:"status"`
	Backend        string `json:"backend"`
	Chunks         int    `json:"chunks"`
	EmbeddingModel string `json:"embedding_model"`
	Timestamp      string `json:"timestamp"`
}

// handleHealth reports index size and backend reachability. An empty index is
// healthy but reported as "empty" so operators notice a missing corpus.
func (a *App) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	response := HealthResponse{
		Backend:        a.Backend,
		Chunks:         a.Index.Count(),
		EmbeddingModel: a.Index.EmbeddingModel(),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}

	if err := a.Index.Health(ctx); err != nil {
		a.Logger.Warn("Index health check failed", "error", err)
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Status = "healthy"
	if response.Chunks == 0 {
		response.Status = "empty"
	}
	c.JSON(http.StatusOK, response)
}
