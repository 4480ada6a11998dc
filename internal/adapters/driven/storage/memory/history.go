package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// Ensure ChatHistoryStore implements the interface.
var _ driven.ChatHistoryStore = (*ChatHistoryStore)(nil)

// ChatHistoryStore is an in-memory implementation of driven.ChatHistoryStore.
type ChatHistoryStore struct {
	mu      sync.RWMutex
	entries []domain.ChatEntry
	nextID  int64
}

// NewChatHistoryStore creates an empty history.
func NewChatHistoryStore() *ChatHistoryStore {
	return &ChatHistoryStore{nextID: 1}
}

// Append adds an entry and assigns it an ID.
func (s *ChatHistoryStore) Append(_ context.Context, entry domain.ChatEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, entry)
	return nil
}

// List returns the entries for hash, oldest first.
func (s *ChatHistoryStore) List(_ context.Context, hash domain.DocumentHash) ([]domain.ChatEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.ChatEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.DocumentHash == hash {
			result = append(result, e)
		}
	}
	return result, nil
}

// Clear removes all entries.
func (s *ChatHistoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
