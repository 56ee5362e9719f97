package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bull/socratic-qa/internal/metrics"
	"github.com/bull/socratic-qa/internal/provider"
	"github.com/bull/socratic-qa/internal/rag"
)

// statusClientClosedRequest is recorded when the caller went away mid-request.
const statusClientClosedRequest = 499

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type sourceDocument struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

type askResponse struct {
	Answer  string           `json:"answer"`
	Sources []sourceDocument `json:"sources"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (a *App) handleAsk(c *gin.Context) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.AskRequests.WithLabelValues(strconv.Itoa(status)).Inc()
		metrics.AskDuration.Observe(time.Since(start).Seconds())
	}()

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		status = http.StatusUnprocessableEntity
		c.JSON(status, errorResponse{Detail: "field 'question' is required and must be a non-empty string"})
		return
	}

	answer, err := a.Answerer.Ask(c.Request.Context(), req.Question)
	if err != nil {
		var detail string
		status, detail = errorStatus(err)
		if status >= http.StatusInternalServerError {
			a.Logger.Error("Failed to answer question", "status", status, "error", err)
		}
		_ = c.Error(err)
		c.JSON(status, errorResponse{Detail: detail})
		return
	}

	resp := askResponse{
		Answer:  answer.Text,
		Sources: make([]sourceDocument, 0, len(answer.Sources)),
	}
	for _, s := range answer.Sources {
		meta := s.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		resp.Sources = append(resp.Sources, sourceDocument{PageContent: s.Text, Metadata: meta})
	}
	c.JSON(status, resp)
}

// errorStatus maps an answering failure to an HTTP status and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, rag.ErrEmptyIndex):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, provider.ErrTimeout):
		return http.StatusGatewayTimeout, "upstream model provider timed out"
	case errors.Is(err, provider.ErrCanceled):
		return statusClientClosedRequest, "request canceled"
	case errors.Is(err, provider.ErrFailed):
		return http.StatusBadGateway, "upstream model provider failed"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}
