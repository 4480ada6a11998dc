package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// Ensure DocumentRegistry implements the interface.
var _ driven.DocumentRegistry = (*DocumentRegistry)(nil)

// DocumentRegistry is an in-memory implementation of driven.DocumentRegistry.
type DocumentRegistry struct {
	mu     sync.RWMutex
	active *domain.ActiveDocument
}

// NewDocumentRegistry creates an empty registry.
func NewDocumentRegistry() *DocumentRegistry {
	return &DocumentRegistry{}
}

// SetActive records doc as the active document.
func (r *DocumentRegistry) SetActive(_ context.Context, doc domain.ActiveDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = &doc
	return nil
}

// Active returns a copy of the active document.
func (r *DocumentRegistry) Active(_ context.Context) (*domain.ActiveDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil, domain.ErrNotFound
	}
	doc := *r.active
	return &doc, nil
}

// MarkProcessed flags the active document as processed when its hash matches.
func (r *DocumentRegistry) MarkProcessed(_ context.Context, hash domain.DocumentHash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.Hash != hash {
		return fmt.Errorf("%w: no active document with hash %s", domain.ErrNotFound, hash)
	}
	r.active.Processed = true
	return nil
}

// ClearActive forgets the active document.
func (r *DocumentRegistry) ClearActive(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = nil
	return nil
}
