// Package loader reads a source directory into Documents, dispatching on file extension.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Metadata keys set by the parsers.
const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaSection    = "section"
)

// Document is parsed text with metadata identifying where it came from.
// PDFs yield one Document per page, markdown one per H1/H2 section.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Source returns the originating file path.
func (d Document) Source() string {
	s, _ := d.Metadata[MetaSource].(string)
	return s
}

// ParseFunc parses one file into Documents.
type ParseFunc func(path string) ([]Document, error)

// Loader maps extensions to parsers.
type Loader struct {
	parsers map[string]ParseFunc
	logger  *slog.Logger
}

// New creates a Loader for .txt, .pdf and .md files.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		parsers: map[string]ParseFunc{
			".txt": ParseText,
			".pdf": ParsePDF,
			".md":  ParseMarkdown,
		},
		logger: logger,
	}
}

// Supports reports whether files with the given name would be parsed.
func (l *Loader) Supports(name string) bool {
	_, ok := l.parsers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Load parses every supported file directly inside dir.
// Unsupported files are skipped; the first parse error aborts the load.
// Documents are ordered by file name, then page or section.
func (l *Loader) Load(ctx context.Context, dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !l.Supports(name) {
			l.logger.Debug("Skipping unsupported file", "file", name)
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)

	perFile := make([][]Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, name)
			parse := l.parsers[strings.ToLower(filepath.Ext(name))]
			docs, err := parse(path)
			if err != nil {
				return fmt.Errorf("parse %s: %w", name, err)
			}
			l.logger.Info("Loaded file", "file", name, "documents", len(docs))
			perFile[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var docs []Document
	for _, d := range perFile {
		docs = append(docs, d...)
	}
	l.logger.Info("Total documents loaded", "dir", dir, "files", len(files), "documents", len(docs))
	return docs, nil
}
