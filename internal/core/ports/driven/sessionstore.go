package driven

import (
	"context"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// DocumentRegistry persists the document a session is working with.
type DocumentRegistry interface {
	// SetActive records doc as the active document, replacing any previous one.
	SetActive(ctx context.Context, doc domain.ActiveDocument) error

	// Active returns the active document.
	// Returns domain.ErrNotFound when none is recorded.
	Active(ctx context.Context) (*domain.ActiveDocument, error)

	// MarkProcessed flags the document with the given hash as processed.
	MarkProcessed(ctx context.Context, hash domain.DocumentHash) error

	// ClearActive forgets the active document.
	ClearActive(ctx context.Context) error
}

// ChatHistoryStore persists question/answer records.
type ChatHistoryStore interface {
	// Append adds an entry to the end of the history.
	Append(ctx context.Context, entry domain.ChatEntry) error

	// List returns all entries for a document, oldest first.
	List(ctx context.Context, hash domain.DocumentHash) ([]domain.ChatEntry, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error
}
