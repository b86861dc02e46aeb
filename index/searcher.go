package index

import "context"

// Searcher is the minimal similarity-search contract retrieval is built
// on. The in-memory Index and the PostgresStore both satisfy it. A
// Searcher must only be queried with vectors from the same embedding
// space its chunks were embedded in.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)
}
