// Package document defines the text units flowing through the pipeline and
// the extraction backends that produce them from files on disk.
package document

// Metadata records where a piece of text came from.
type Metadata struct {
	// Source is the path of the originating file.
	Source string
	// Page is the 1-based page number within the source file.
	Page int
	// StartOffset is the rune offset of a chunk within its page text.
	// Zero for whole-page documents.
	StartOffset int
}

// Document is the extracted text of a single page of a source file.
// Immutable once produced by an Extractor.
type Document struct {
	Text     string
	Metadata Metadata
}

// Chunk is a bounded-length segment of a Document's text carrying full
// provenance metadata. Chunks are immutable; the vector index owns them
// once they are embedded.
type Chunk struct {
	Text     string
	Metadata Metadata
}
