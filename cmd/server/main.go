// Package main serves the Socratic question-answering API, the static frontend and MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bull/socratic-qa/internal/api"
	"github.com/bull/socratic-qa/internal/chunker"
	"github.com/bull/socratic-qa/internal/config"
	"github.com/bull/socratic-qa/internal/embedding"
	"github.com/bull/socratic-qa/internal/indexer"
	"github.com/bull/socratic-qa/internal/llm"
	"github.com/bull/socratic-qa/internal/loader"
	"github.com/bull/socratic-qa/internal/logging"
	mcpserver "github.com/bull/socratic-qa/internal/mcp"
	"github.com/bull/socratic-qa/internal/rag"
	"github.com/bull/socratic-qa/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	mcpStdio   bool
)

var rootCmd = &cobra.Command{
	Use:   "socratic-server",
	Short: "Socratic dialogue agent over a local document corpus",
	Long: `Indexes every .txt, .pdf and .md file in the source directory, then serves:

  POST /ask      answer a question from the corpus
  GET  /health   index status
  GET  /metrics  Prometheus metrics
  /mcp           Model Context Protocol (streamable HTTP)
  /*             static frontend

Environment variables:
  OPENAI_API_KEY  required when a provider is "openai"
  SOURCE_DIR      corpus directory (default: spiritual_database)
  STATIC_DIR      frontend directory (default: static)
  PORT            listen port (default: 8000)
  INDEX_BACKEND   memory or qdrant (default: memory)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  LOG_LEVEL       debug, info, warn, error`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")
	rootCmd.Flags().BoolVar(&mcpStdio, "mcp-stdio", false, "serve MCP over stdin/stdout instead of HTTP")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	slog.SetDefault(logger)

	app, index, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		return err
	}
	defer index.Close()

	serve := func(ctx context.Context) error { return serveHTTP(ctx, cfg, app, logger) }
	if mcpStdio {
		// stdout belongs to the protocol; HTTP still serves health and the frontend
		logger.Info("Starting MCP server (stdio mode)")
		return runBoth(ctx, serve, app.mcp.Run)
	}
	return serve(ctx)
}

// runBoth runs the HTTP server and the stdio MCP session together. A failure
// in either cancels the other, and the HTTP server stops once the MCP session ends.
func runBoth(ctx context.Context, serve, mcpRun func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	sessionCtx, endSession := context.WithCancel(gctx)
	g.Go(func() error { return serve(sessionCtx) })
	g.Go(func() error {
		defer endSession()
		return mcpRun(gctx)
	})
	return g.Wait()
}

type application struct {
	router http.Handler
	mcp    *mcpserver.Server
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, storage.Index, error) {
	embedder, err := embedding.New(cfg.Embedding, cfg.OpenAIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}
	embedder, err = embedding.NewCached(embedder, cfg.Embedding.QueryCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("create query cache: %w", err)
	}

	completer, err := llm.New(cfg.LLM, cfg.OpenAIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create completer: %w", err)
	}

	index, err := storage.Open(ctx, cfg.Index, embedder.Model())
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}

	chunks, err := chunker.New(chunker.Settings{
		Strategy: cfg.Chunking.Strategy,
		Size:     cfg.Chunking.Size,
		Overlap:  cfg.Chunking.Overlap,
	}, logger)
	if err != nil {
		index.Close()
		return nil, nil, err
	}

	pipeline := indexer.NewPipeline(loader.New(logger), chunks, embedder, index, logger)
	if _, err := pipeline.Build(ctx, cfg.SourceDir); err != nil {
		index.Close()
		return nil, nil, fmt.Errorf("build index: %w", err)
	}

	answerer, err := rag.New(index, embedder, completer, cfg.Retrieval.TopK, logger)
	if err != nil {
		index.Close()
		return nil, nil, err
	}

	mcpServer := mcpserver.NewServer(&mcpserver.Config{
		Answerer: answerer,
		Index:    index,
		Backend:  cfg.Index.Backend,
	})

	router := api.NewRouter(&api.App{
		Answerer:  answerer,
		Index:     index,
		Backend:   cfg.Index.Backend,
		StaticDir: cfg.StaticDir,
		MCP:       mcpserver.NewHTTPHandler(mcpServer, mcpserver.HTTPOptions{Logger: logger}),
		Logger:    logger,
	})

	return &application{router: router, mcp: mcpServer}, index, nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, app *application, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", srv.Addr, "llm", cfg.LLM.Model, "embedding", cfg.Embedding.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("HTTP server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
