package driven

import (
	"context"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// DocumentLoader extracts text from a document file.
type DocumentLoader interface {
	// Load reads the file at path and returns its ordered segments.
	// name is the display name recorded on the document.
	// Returns domain.ErrNoContent when no text could be extracted.
	Load(ctx context.Context, path, name string) (*domain.Document, error)
}
