// Package chunker splits loaded documents into overlapping, bounded chunks for embedding.
package chunker

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bull/socratic-qa/internal/loader"
)

// MetaChunkIndex is the metadata key holding a chunk's position within its document.
const MetaChunkIndex = "chunk_index"

// Strategies.
const (
	StrategyWindow    = "window"
	StrategyRecursive = "recursive"
)

// ErrInvalidSettings is returned for impossible size/overlap combinations.
var ErrInvalidSettings = errors.New("invalid chunk settings")

// chunkNamespace seeds deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c0b52-8a3e-4d0b-9a57-2f0d8f4f3c11")

// Chunk is the unit of retrieval: a slice of one Document plus that Document's metadata.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Settings configures a Chunker.
type Settings struct {
	Strategy string
	Size     int // max runes per chunk
	Overlap  int // runes shared by consecutive chunks
}

// Chunker turns Documents into Chunks.
type Chunker struct {
	splitter Splitter
	settings Settings
	logger   *slog.Logger
}

// New validates settings and builds a Chunker. An empty strategy means window.
func New(settings Settings, logger *slog.Logger) (*Chunker, error) {
	if settings.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be greater than zero", ErrInvalidSettings)
	}
	if settings.Overlap < 0 || settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidSettings, settings.Overlap, settings.Size)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var splitter Splitter
	switch settings.Strategy {
	case "", StrategyWindow:
		settings.Strategy = StrategyWindow
		splitter = WindowSplitter{Size: settings.Size, Overlap: settings.Overlap}
	case StrategyRecursive:
		splitter = newRecursiveSplitter(settings.Size, settings.Overlap)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidSettings, settings.Strategy)
	}

	return &Chunker{splitter: splitter, settings: settings, logger: logger}, nil
}

// Split chunks every document. Chunk IDs depend only on the source location and
// position, so splitting the same documents twice yields the same chunk set.
// docs must keep the loader's order: a document's position within its file is
// part of the ID, since markdown headings may repeat.
func (c *Chunker) Split(docs []loader.Document) ([]Chunk, error) {
	var chunks []Chunk
	perSource := make(map[string]int)
	for _, doc := range docs {
		ordinal := perSource[doc.Source()]
		perSource[doc.Source()]++

		pieces, err := c.splitter.SplitText(strings.TrimSpace(doc.Text))
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", doc.Source(), err)
		}
		for i, piece := range pieces {
			meta := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta[MetaChunkIndex] = i

			chunks = append(chunks, Chunk{
				ID:       chunkID(doc.Metadata, ordinal, i),
				Text:     piece,
				Metadata: meta,
			})
		}
	}
	c.logger.Info("Split documents into chunks",
		"documents", len(docs),
		"chunks", len(chunks),
		"strategy", c.settings.Strategy,
		"size", c.settings.Size,
		"overlap", c.settings.Overlap,
	)
	return chunks, nil
}

func chunkID(meta map[string]any, ordinal, index int) string {
	name := fmt.Sprintf("%v|%v|%v|%d|%d",
		meta[loader.MetaSource], meta[loader.MetaPage], meta[loader.MetaSection], ordinal, index)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
