package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// SessionService holds the active document and its chat history.
// It is the request-layer state shared by the HTTP server, MCP tools and the TUI.
type SessionService interface {
	// Upload stores a PDF and makes it the active document.
	Upload(ctx context.Context, filename string, r io.Reader) (*domain.ActiveDocument, error)

	// Open makes an existing file on disk the active document without copying it.
	Open(ctx context.Context, path string) (*domain.ActiveDocument, error)

	// Process indexes the active document.
	Process(ctx context.Context) (*domain.ProcessResult, error)

	// Ask answers a question about the active document and records it in the history.
	Ask(ctx context.Context, question string) (*domain.ChatEntry, error)

	// Active returns the active document.
	Active(ctx context.Context) (*domain.ActiveDocument, error)

	// History returns the chat history for the active document.
	History(ctx context.Context) ([]domain.ChatEntry, error)

	// ClearHistory removes the chat history.
	ClearHistory(ctx context.Context) error

	// Reset removes the uploaded file, forgets the active document and clears caches.
	Reset(ctx context.Context) error
}
