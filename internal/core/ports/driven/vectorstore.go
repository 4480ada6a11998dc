package driven

import (
	"context"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// VectorStore manages the lifecycle of remote per-document indexes.
// Creation and deletion are asynchronous on managed services; callers poll
// HasIndex and DescribeIndex to observe completion.
//
// Implementations may include:
//   - Pinecone serverless indexes
//   - Redis Stack (RediSearch vector indexes)
//   - In-memory indexes for development and tests
type VectorStore interface {
	// ListIndexes returns the names of all indexes visible to the caller.
	ListIndexes(ctx context.Context) ([]string, error)

	// HasIndex reports whether an index with the given name exists.
	HasIndex(ctx context.Context, name string) (bool, error)

	// DescribeIndex returns the control-plane state of an index.
	// Returns domain.ErrNotFound if the index does not exist.
	DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error)

	// CreateIndex issues index creation. It may return before the index is ready.
	CreateIndex(ctx context.Context, spec domain.IndexSpec) error

	// DeleteIndex issues index deletion. It may return before deletion completes.
	DeleteIndex(ctx context.Context, name string) error

	// Index opens a data-plane handle on an existing index.
	Index(ctx context.Context, name string) (IndexHandle, error)

	// Close releases resources.
	Close() error
}

// IndexHandle provides data-plane access to a single index.
type IndexHandle interface {
	// Name returns the index name.
	Name() string

	// Stats returns the vector count and dimension.
	Stats(ctx context.Context) (*domain.IndexStats, error)

	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Query returns the topK records most similar to vector, best first.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.ScoredChunk, error)
}
