package loader

import (
	"bytes"
	"os"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseText reads a UTF-8 text file as a single Document, dropping a leading BOM.
func ParseText(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	return []Document{{
		Text:     string(data),
		Metadata: map[string]any{MetaSource: path},
	}}, nil
}
