package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/docchat/document"
)

// PostgresStore keeps chunk embeddings in a pgvector-backed table. It
// satisfies the same Searcher contract as the in-memory Index, with
// scores mapped from L2 distance to 1/(1+distance).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Add stores chunks and their vectors in a single transaction. Rows
// previously stored for the same source files are replaced, so
// re-ingesting a file never accumulates duplicates; a failure rolls
// back and the store keeps its prior state.
func (s *PostgresStore) Add(ctx context.Context, chunks []document.Chunk, vectors [][]float32) (err error) {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}

	seen := make(map[string]struct{}, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.Metadata.Source]; ok {
			continue
		}
		seen[chunk.Metadata.Source] = struct{}{}
		sources = append(sources, chunk.Metadata.Source)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if len(sources) > 0 {
		if _, err = tx.Exec(ctx, "DELETE FROM docchat_chunks WHERE source_path = ANY($1)", sources); err != nil {
			return fmt.Errorf("replace chunks for re-ingested sources: %w", err)
		}
	}

	for i, chunk := range chunks {
		if _, err = tx.Exec(ctx, `
			INSERT INTO docchat_chunks (id, source_path, page, start_offset, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, uuid.New(), chunk.Metadata.Source, chunk.Metadata.Page, chunk.Metadata.StartOffset, chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return []ScoredChunk{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT source_path, page, start_offset, content,
		       (embedding <-> $1::vector) AS distance
		FROM docchat_chunks
		ORDER BY embedding <-> $1::vector, created_at
		LIMIT $2
	`, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]ScoredChunk, 0, k)
	for rows.Next() {
		var (
			chunk    document.Chunk
			distance float64
		)
		if err := rows.Scan(&chunk.Metadata.Source, &chunk.Metadata.Page, &chunk.Metadata.StartOffset, &chunk.Text, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		results = append(results, ScoredChunk{Chunk: chunk, Score: 1 / (1 + distance)})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

// Clear removes every stored chunk.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE docchat_chunks"); err != nil {
		return fmt.Errorf("truncate docchat_chunks: %w", err)
	}
	return nil
}

var _ Searcher = (*PostgresStore)(nil)
