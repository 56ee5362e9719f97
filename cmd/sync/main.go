// Package main provides the corpus maintenance CLI: inspect what would be indexed
// and fetch corpus files from GitHub.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/socratic-qa/internal/chunker"
	"github.com/bull/socratic-qa/internal/config"
	ghclient "github.com/bull/socratic-qa/internal/github"
	"github.com/bull/socratic-qa/internal/loader"
	"github.com/bull/socratic-qa/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "socratic-sync",
	Short: "Corpus maintenance for the Socratic QA service",
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show what the server would index, without calling any provider",
	Long: `Loads and chunks every supported file in the source directory exactly as the
server does at startup and prints per-file document and chunk counts.`,
	RunE: runInspect,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download corpus files from a GitHub repository directory",
	Long: `Recursively downloads .txt, .pdf and .md files from a repository directory
into the source directory. Files are written flat under their base names.

Environment variables:
  GITHUB_TOKEN   GitHub token for higher rate limits (optional)`,
	RunE: runFetch,
}

var (
	sourceDir string
	strategy  string
	chunkSize int
	overlap   int
	logLevel  string

	repoFlag string
	pathFlag string
)

func init() {
	defaults := config.Default()

	rootCmd.PersistentFlags().StringVar(&sourceDir, "source-dir", defaults.SourceDir, "corpus directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug, info, warn, error")

	inspectCmd.Flags().StringVar(&strategy, "strategy", defaults.Chunking.Strategy, "chunking strategy: window or recursive")
	inspectCmd.Flags().IntVar(&chunkSize, "chunk-size", defaults.Chunking.Size, "maximum runes per chunk")
	inspectCmd.Flags().IntVar(&overlap, "chunk-overlap", defaults.Chunking.Overlap, "runes shared by consecutive chunks")

	fetchCmd.Flags().StringVar(&repoFlag, "repo", "", "repository as owner/name (required)")
	fetchCmd.Flags().StringVar(&pathFlag, "path", "", "directory inside the repository")
	_ = fetchCmd.MarkFlagRequired("repo")

	rootCmd.AddCommand(inspectCmd, fetchCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type fileStats struct {
	documents int
	chunks    int
	runes     int
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	start := time.Now()
	logger := logging.New(logging.Config{Level: logLevel})

	docs, err := loader.New(logger).Load(ctx, sourceDir)
	if err != nil {
		return err
	}
	c, err := chunker.New(chunker.Settings{Strategy: strategy, Size: chunkSize, Overlap: overlap}, logger)
	if err != nil {
		return err
	}
	chunks, err := c.Split(docs)
	if err != nil {
		return err
	}

	stats := make(map[string]*fileStats)
	statFor := func(source string) *fileStats {
		s, ok := stats[source]
		if !ok {
			s = &fileStats{}
			stats[source] = s
		}
		return s
	}
	for _, d := range docs {
		statFor(d.Source()).documents++
	}
	for _, ch := range chunks {
		source, _ := ch.Metadata[loader.MetaSource].(string)
		s := statFor(source)
		s.chunks++
		s.runes += len([]rune(ch.Text))
	}

	sources := make([]string, 0, len(stats))
	for source := range stats {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tDOCUMENTS\tCHUNKS\tAVG RUNES")
	for _, source := range sources {
		s := stats[source]
		avg := 0
		if s.chunks > 0 {
			avg = s.runes / s.chunks
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", source, s.documents, s.chunks, avg)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Files: %d  Documents: %d  Chunks: %d  (%s, size %d, overlap %d)\n",
		len(sources), len(docs), len(chunks), strategy, chunkSize, overlap)
	fmt.Fprintf(out, "Took %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	start := time.Now()
	logger := logging.New(logging.Config{Level: logLevel})
	out := cmd.OutOrStdout()

	owner, repo, err := ghclient.ParseRepo(repoFlag)
	if err != nil {
		return err
	}

	client, err := ghclient.NewClient(ghclient.ClientOptions{Token: os.Getenv("GITHUB_TOKEN")})
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	supported := loader.New(logger)
	fetcher := ghclient.NewFetcher(client, owner, repo, pathFlag, supported.Supports, logger)

	fmt.Fprintf(out, "Fetching %s/%s:%s into %s...\n", owner, repo, pathFlag, sourceDir)
	written, err := fetcher.FetchAll(ctx, sourceDir)
	for _, p := range written {
		fmt.Fprintf(out, "  %s\n", p)
	}
	if err != nil {
		return fmt.Errorf("fetch failed after %d files: %w", len(written), err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Fetched %d files in %s\n", len(written), time.Since(start).Round(time.Second))
	return nil
}
