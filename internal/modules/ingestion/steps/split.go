package steps

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 400
)

// Chunk is one embeddable span. Index counts chunks within its page.
type Chunk struct {
	Source string
	Page   string
	Index  int
	Text   string
}

// SplitPages splits each page on its own so every chunk keeps a page label.
func SplitPages(pages []Page, size, overlap int) ([]Chunk, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("split: overlap %d must be in [0,%d)", overlap, size)
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)

	var out []Chunk
	for _, p := range pages {
		parts, err := splitter.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("split %s page %s: %w", p.Source, p.Label, err)
		}
		idx := 0
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, Chunk{Source: p.Source, Page: p.Label, Index: idx, Text: part})
			idx++
		}
	}
	return out, nil
}
