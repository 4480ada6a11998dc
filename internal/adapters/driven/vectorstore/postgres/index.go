package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.IndexHandle = (*Index)(nil)

const upsertSQL = `
INSERT INTO pdfqa_vectors (index_name, id, content, metadata, embedding)
VALUES ($1, $2, $3, $4::jsonb, $5::vector)
ON CONFLICT (index_name, id) DO UPDATE
SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`

// Index is a handle on one pgvector-backed index.
type Index struct {
	pool      *pgxpool.Pool
	name      string
	dimension int
	metric    string
	operator  string
}

// Name returns the index name.
func (i *Index) Name() string {
	return i.name
}

// Stats counts the vectors stored for the index.
func (i *Index) Stats(ctx context.Context) (*domain.IndexStats, error) {
	var count int64
	err := i.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM pdfqa_vectors WHERE index_name = $1`, i.name,
	).Scan(&count)
	if err != nil {
		return nil, wrapError("stats "+i.name, err)
	}
	return &domain.IndexStats{TotalVectorCount: count, Dimension: i.dimension}, nil
}

// Upsert writes all records in one batch.
func (i *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Values) != i.dimension {
			return fmt.Errorf("%w: record %s has %d values, index %s expects %d",
				domain.ErrInvalidInput, r.ID, len(r.Values), i.name, i.dimension)
		}
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: encode metadata for %s: %w", r.ID, err)
		}
		batch.Queue(upsertSQL, i.name, r.ID, r.Content, string(metadata), vectorLiteral(r.Values))
	}

	if err := i.pool.SendBatch(ctx, batch).Close(); err != nil {
		return wrapError("upsert "+i.name, err)
	}
	return nil
}

// Query returns the topK nearest vectors, best first.
func (i *Index) Query(ctx context.Context, values []float32, topK int) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		topK = 1
	}

	query := fmt.Sprintf(`
SELECT id, content, metadata::text, embedding %s $2::vector AS distance
FROM pdfqa_vectors
WHERE index_name = $1
ORDER BY distance
LIMIT $3`, i.operator)

	rows, err := i.pool.Query(ctx, query, i.name, vectorLiteral(values), topK)
	if err != nil {
		return nil, wrapError("query "+i.name, err)
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var (
			chunk    domain.ScoredChunk
			metadata string
			distance float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Content, &metadata, &distance); err != nil {
			return nil, wrapError("scan "+i.name, err)
		}
		if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: decode metadata for %s: %w", chunk.ID, err)
		}
		chunk.Score = similarity(distance, i.metric)
		results = append(results, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("query "+i.name, err)
	}
	return results, nil
}

// vectorLiteral formats values in the pgvector text form "[1,2,3]".
func vectorLiteral(values []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for n, v := range values {
		if n > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// similarity converts a pgvector distance into a higher-is-better score.
func similarity(distance float64, metric string) float64 {
	switch strings.ToLower(metric) {
	case "euclidean":
		return 1 / (1 + distance)
	case "dotproduct":
		// <#> returns the negative inner product.
		return -distance
	default:
		return 1 - distance
	}
}
