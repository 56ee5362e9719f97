package loader

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ParsePDF extracts plain text page by page. Page numbers are 0-based.
// Pages without extractable text are dropped.
func ParsePDF(path string) (docs []Document, err error) {
	// ledongthuc/pdf panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{
			Text: text,
			Metadata: map[string]any{
				MetaSource:     path,
				MetaPage:       i - 1,
				MetaTotalPages: total,
			},
		})
	}
	return docs, nil
}
