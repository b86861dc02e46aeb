package splitter_test

import (
	"strings"
	"testing"

	"github.com/fabfab/docchat/document"
	"github.com/fabfab/docchat/splitter"
)

func page(text string) document.Document {
	return document.Document{
		Text:     text,
		Metadata: document.Metadata{Source: "doc.pdf", Page: 1},
	}
}

func TestNewSplitterRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := splitter.NewSplitter(tc.size, tc.overlap); err == nil {
				t.Fatalf("expected error for size=%d overlap=%d", tc.size, tc.overlap)
			}
		})
	}
}

func TestSplitShortDocumentYieldsSingleChunk(t *testing.T) {
	s, err := splitter.NewSplitter(1000, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := "The capital of France is Paris."
	chunks := s.Split([]document.Document{page(text)})
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Fatalf("chunk text %q does not match document text", chunks[0].Text)
	}
	if chunks[0].Metadata.StartOffset != 0 {
		t.Fatalf("expected start offset 0, got %d", chunks[0].Metadata.StartOffset)
	}
	if chunks[0].Metadata.Source != "doc.pdf" || chunks[0].Metadata.Page != 1 {
		t.Fatalf("chunk did not inherit page metadata: %+v", chunks[0].Metadata)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s, err := splitter.NewSplitter(100, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chunks := s.Split(nil); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
	if chunks := s.Split([]document.Document{page("   \n\n  ")}); len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank document, got %d", len(chunks))
	}
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	const (
		size    = 50
		overlap = 10
	)
	s, err := splitter.NewSplitter(size, overlap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 10)
	doc := page(text)
	chunks := s.Split([]document.Document{doc})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	runes := []rune(text)
	for i, chunk := range chunks {
		if got := len([]rune(chunk.Text)); got > size {
			t.Fatalf("chunk %d has %d runes, exceeds size %d", i, got, size)
		}

		start := chunk.Metadata.StartOffset
		end := start + len([]rune(chunk.Text))
		if string(runes[start:end]) != chunk.Text {
			t.Fatalf("chunk %d text does not match source at offset %d", i, start)
		}

		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		prevEnd := prev.Metadata.StartOffset + len([]rune(prev.Text))
		if got := prevEnd - start; got != overlap {
			t.Fatalf("chunks %d and %d overlap by %d runes, want %d", i-1, i, got, overlap)
		}
	}

	last := chunks[len(chunks)-1]
	if end := last.Metadata.StartOffset + len([]rune(last.Text)); end != len(runes) {
		t.Fatalf("final chunk ends at %d, want %d", end, len(runes))
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s, err := splitter.NewSplitter(60, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := "First paragraph with some words in it.\n\nSecond paragraph continues here with more words to force a second window."
	chunks := s.Split([]document.Document{page(text)})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Fatalf("expected first chunk to break at the paragraph boundary, got %q", chunks[0].Text)
	}
}

func TestSplitHardCutWithoutSeparators(t *testing.T) {
	s, err := splitter.NewSplitter(10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := strings.Repeat("x", 25)
	chunks := s.Split([]document.Document{page(text)})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks[:len(chunks)-1] {
		if len(chunk.Text) != 10 {
			t.Fatalf("chunk %d should be a full window, got %d runes", i, len(chunk.Text))
		}
	}
}
