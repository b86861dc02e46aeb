package chat

import (
	"context"
	"fmt"

	"github.com/fabfab/docchat/embeddings"
	"github.com/fabfab/docchat/index"
)

const defaultK = 4

// Retriever answers "given a query, return ranked relevant chunks" with
// a result count fixed at construction time.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]index.ScoredChunk, error)
}

// VectorRetriever embeds the query and delegates to a Searcher. The
// embedder must be the one the searcher's chunks were embedded with;
// mixing embedding spaces silently degrades retrieval and cannot be
// detected here.
type VectorRetriever struct {
	searcher index.Searcher
	embedder embeddings.Embedder
	k        int
}

func NewVectorRetriever(searcher index.Searcher, embedder embeddings.Embedder, k int) *VectorRetriever {
	if k <= 0 {
		k = defaultK
	}
	return &VectorRetriever{searcher: searcher, embedder: embedder, k: k}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]index.ScoredChunk, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}
	if r.searcher == nil {
		return nil, fmt.Errorf("searcher is not configured")
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	results, err := r.searcher.Search(ctx, vectors[0], r.k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

var _ Retriever = (*VectorRetriever)(nil)
