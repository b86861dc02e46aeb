// Package splitter segments extracted page text into overlapping,
// bounded-length chunks suitable for embedding and retrieval.
package splitter

import (
	"fmt"
	"strings"

	"github.com/fabfab/docchat/document"
)

// separators is the boundary preference order when trimming a window:
// paragraph break, then line break, then sentence end, then word break.
// When none of them appears inside the window the cut falls back to a
// hard rune boundary.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter walks page text with a sliding window of at most Size runes,
// advancing so that consecutive chunks from the same page overlap by
// exactly Overlap runes.
type Splitter struct {
	size    int
	overlap int
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split chunks every document in order. Empty input yields an empty
// slice; documents with blank text yield no chunks.
func (s *Splitter) Split(docs []document.Document) []document.Chunk {
	chunks := make([]document.Chunk, 0, len(docs))
	for _, doc := range docs {
		chunks = append(chunks, s.splitDocument(doc)...)
	}
	return chunks
}

func (s *Splitter) splitDocument(doc document.Document) []document.Chunk {
	runes := []rune(doc.Text)
	if len(strings.TrimSpace(doc.Text)) == 0 {
		return nil
	}

	var chunks []document.Chunk
	pos := 0
	for {
		end := pos + s.size
		if end >= len(runes) {
			chunks = append(chunks, s.chunkAt(doc, runes, pos, len(runes)))
			break
		}

		cut := s.findCut(runes[pos:end])
		chunks = append(chunks, s.chunkAt(doc, runes, pos, pos+cut))
		pos = pos + cut - s.overlap
	}
	return chunks
}

// findCut returns the window-relative end of the next chunk, preferring
// the last occurrence of the highest-level separator. A cut must leave
// more than Overlap runes behind it, otherwise the window would stop
// advancing; when no separator qualifies the full window is used.
func (s *Splitter) findCut(window []rune) int {
	text := string(window)
	for _, sep := range separators {
		idx := strings.LastIndex(text, sep)
		if idx < 0 {
			continue
		}
		cut := len([]rune(text[:idx])) + len([]rune(sep))
		if cut > s.overlap {
			return cut
		}
	}
	return len(window)
}

func (s *Splitter) chunkAt(doc document.Document, runes []rune, start, end int) document.Chunk {
	meta := doc.Metadata
	meta.StartOffset = start
	return document.Chunk{
		Text:     string(runes[start:end]),
		Metadata: meta,
	}
}

// Size reports the configured maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap reports the configured overlap between consecutive chunks.
func (s *Splitter) Overlap() int { return s.overlap }
