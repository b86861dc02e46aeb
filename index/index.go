// Package index stores chunk embeddings and answers nearest-neighbor
// queries over them. The in-memory Index is the default backend; a
// Postgres/pgvector store in this package satisfies the same Searcher
// contract for larger corpora.
package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/fabfab/docchat/document"
	"github.com/fabfab/docchat/embeddings"
)

// embedBatchSize bounds how many texts are sent to the embedding
// backend per call.
const embedBatchSize = 64

const snapshotFile = "snapshot.gob"

// ErrNotFound reports that no snapshot exists at the given location.
// Callers fall back to building a fresh index; this is not a failure.
var ErrNotFound = errors.New("index snapshot not found")

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk document.Chunk
	Score float64
}

// Index is an immutable in-memory vector index over cosine similarity.
// Once built it is safe for concurrent Search calls.
type Index struct {
	dimension int
	chunks    []document.Chunk
	vectors   [][]float32
}

// Build embeds every chunk in order and constructs an index owning the
// resulting (chunk, vector) pairs. Any embedding failure aborts the
// build with no partial state. Zero chunks yields a legal, always-empty
// index.
func Build(ctx context.Context, chunks []document.Chunk, embedder embeddings.Embedder) (*Index, error) {
	vectors, err := EmbedChunks(ctx, chunks, embedder)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		chunks:  append([]document.Chunk(nil), chunks...),
		vectors: vectors,
	}
	if len(vectors) > 0 {
		ix.dimension = len(vectors[0])
	}
	return ix, nil
}

// EmbedChunks batches chunk texts through the embedder, preserving
// input order. It verifies that the backend returned one vector per
// chunk and that all vectors share one dimensionality.
func EmbedChunks(ctx context.Context, chunks []document.Chunk, embedder embeddings.Embedder) ([][]float32, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		batch, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}

	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("embedder returned an empty vector for chunk %d", i)
		}
		if len(vec) != len(vectors[0]) {
			return nil, fmt.Errorf("embedding dimension mismatch: chunk %d has %d, chunk 0 has %d", i, len(vec), len(vectors[0]))
		}
	}

	return vectors, nil
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Dimension reports the vector dimensionality, zero for an empty index.
func (ix *Index) Dimension() int { return ix.dimension }

// Search returns the k chunks most similar to the query vector, sorted
// by descending cosine similarity with ties kept in insertion order.
// Fewer than k indexed chunks returns all of them; an empty index
// returns an empty result.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ix.chunks) == 0 {
		return []ScoredChunk{}, nil
	}
	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", ix.dimension, len(vector))
	}
	if k <= 0 {
		return []ScoredChunk{}, nil
	}

	results := make([]ScoredChunk, len(ix.chunks))
	for i := range ix.chunks {
		results[i] = ScoredChunk{
			Chunk: ix.chunks[i],
			Score: cosineSimilarity(ix.vectors[i], vector),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

var _ Searcher = (*Index)(nil)

type snapshot struct {
	Dimension int
	Chunks    []document.Chunk
	Vectors   [][]float32
}

// Save persists the full index state under dir so a later Load restores
// identical search behavior.
func (ix *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	file, err := os.Create(filepath.Join(dir, snapshotFile))
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer file.Close()

	snap := snapshot{
		Dimension: ix.dimension,
		Chunks:    ix.chunks,
		Vectors:   ix.vectors,
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("flush snapshot file: %w", err)
	}
	return nil
}

// Load restores an index from a snapshot directory. A missing snapshot
// returns ErrNotFound.
func Load(dir string) (*Index, error) {
	file, err := os.Open(filepath.Join(dir, snapshotFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if len(snap.Chunks) != len(snap.Vectors) {
		return nil, fmt.Errorf("corrupt snapshot: %d chunks but %d vectors", len(snap.Chunks), len(snap.Vectors))
	}

	return &Index{
		dimension: snap.Dimension,
		chunks:    snap.Chunks,
		vectors:   snap.Vectors,
	}, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
