package loader

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// section is the text between one H1/H2 heading and the next.
type section struct {
	HeaderPath string // "# Title > ## Subtitle"
	Content    string
}

type headingStart struct {
	path  string
	start int // byte offset of the heading's first line
}

var markdownParser = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// ParseMarkdown splits a markdown file at H1 and H2 boundaries, one Document per section.
// Text before the first heading becomes its own Document without a section key.
func ParseMarkdown(path string) ([]Document, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	source = bytes.TrimPrefix(source, utf8BOM)

	sections, err := splitSections(source)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(sections))
	for _, s := range sections {
		meta := map[string]any{MetaSource: path}
		if s.HeaderPath != "" {
			meta[MetaSection] = s.HeaderPath
		}
		docs = append(docs, Document{Text: s.Content, Metadata: meta})
	}
	return docs, nil
}

func splitSections(source []byte) ([]section, error) {
	doc := markdownParser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var heads []headingStart
	collectHeadings(doc, source, tree.Items, nil, &heads)
	if len(heads) == 0 {
		content := strings.TrimSpace(string(source))
		if content == "" {
			return nil, nil
		}
		return []section{{Content: content}}, nil
	}
	sort.SliceStable(heads, func(i, j int) bool { return heads[i].start < heads[j].start })

	var sections []section
	if preamble := strings.TrimSpace(string(source[:heads[0].start])); preamble != "" {
		sections = append(sections, section{Content: preamble})
	}
	for i, h := range heads {
		end := len(source)
		if i+1 < len(heads) {
			end = heads[i+1].start
		}
		content := strings.TrimSpace(string(source[h.start:end]))
		if content == "" {
			continue
		}
		sections = append(sections, section{HeaderPath: h.path, Content: content})
	}
	return sections, nil
}

// collectHeadings walks the TOC and records where each heading starts in source.
func collectHeadings(doc ast.Node, source []byte, items toc.Items, ancestors []string, out *[]headingStart) {
	for _, item := range items {
		current := append(append([]string(nil), ancestors...), string(item.Title))

		if node := findHeadingByID(doc, string(item.ID)); node != nil && node.Lines().Len() > 0 {
			*out = append(*out, headingStart{
				path:  formatHeaderPath(current),
				start: lineStart(source, node.Lines().At(0).Start),
			})
		}
		if len(item.Items) > 0 {
			collectHeadings(doc, source, item.Items, current, out)
		}
	}
}

// formatHeaderPath renders ["Intro", "Setup"] as "# Intro > ## Setup".
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = strings.Repeat("#", i+1) + " " + segment
	}
	return strings.Join(parts, " > ")
}

func findHeadingByID(root ast.Node, id string) ast.Node {
	var found ast.Node
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if v, ok := n.AttributeString("id"); ok {
			if b, ok := v.([]byte); ok && string(b) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// lineStart moves pos back to the beginning of its line so "#" markers stay with their section.
func lineStart(source []byte, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}
