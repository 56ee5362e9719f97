package chunker

import (
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter cuts one text into bounded pieces.
type Splitter interface {
	SplitText(text string) ([]string, error)
}

// WindowSplitter produces chunks of at most Size runes where each chunk after the
// first starts exactly Overlap runes before its predecessor ended.
type WindowSplitter struct {
	Size    int
	Overlap int
}

type breakRule func(runes []rune, p int) bool

// Cut preference, strongest first. A rule matches when cutting before runes[p] is acceptable.
var breakRules = []breakRule{
	func(r []rune, p int) bool { return p >= 2 && r[p-1] == '\n' && r[p-2] == '\n' },
	func(r []rune, p int) bool { return r[p-1] == '\n' },
	func(r []rune, p int) bool { return p >= 2 && unicode.IsSpace(r[p-1]) && isSentenceEnd(r[p-2]) },
	func(r []rune, p int) bool { return unicode.IsSpace(r[p-1]) },
}

// SplitText implements Splitter.
func (w WindowSplitter) SplitText(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	runes := []rune(text)
	if len(runes) <= w.Size {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for {
		if start+w.Size >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks, nil
		}
		end := w.cutPoint(runes, start)
		chunks = append(chunks, string(runes[start:end]))
		start = end - w.Overlap
	}
}

// cutPoint picks the end of the chunk starting at start. The result lies in the back
// half of the window and past start+Overlap, so the next chunk always advances.
func (w WindowSplitter) cutPoint(runes []rune, start int) int {
	limit := start + w.Size
	lowest := max(start+w.Size/2, start+w.Overlap+1)

	for _, rule := range breakRules {
		for p := limit; p >= lowest; p-- {
			if rule(runes, p) {
				return p
			}
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// newRecursiveSplitter mirrors the separator-recursive splitter of the original service.
// Overlap is approximate: it is assembled from whole separator-delimited pieces.
func newRecursiveSplitter(size, overlap int) Splitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
}
