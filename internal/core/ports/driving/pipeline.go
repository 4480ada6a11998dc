package driving

import (
	"context"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// PipelineService indexes documents and answers questions about them.
type PipelineService interface {
	// Process builds the index for a document, or reuses an existing populated one.
	// Concurrent calls for the same hash share one execution.
	Process(ctx context.Context, req ProcessRequest) (*domain.ProcessResult, error)

	// Answer retrieves relevant chunks for hash and generates an answer.
	// Returns domain.ErrNotProcessed when no index exists for hash.
	Answer(ctx context.Context, hash domain.DocumentHash, question string) (*domain.Answer, error)

	// IsProcessed reports whether a populated index exists for hash.
	IsProcessed(ctx context.Context, hash domain.DocumentHash) bool

	// Reset clears cached index handles.
	Reset()
}

// ProcessRequest identifies the document to index.
type ProcessRequest struct {
	// Path is the PDF location on disk.
	Path string

	// Name is the display name; defaults to the base of Path.
	Name string

	// Hash is the content hash; computed from the file when empty.
	Hash domain.DocumentHash
}
