package mcp

import (
	"context"
	"io"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	doc     *domain.ActiveDocument
	result  *domain.ProcessResult
	entry   *domain.ChatEntry
	history []domain.ChatEntry
	err     error
	openErr error

	openedPath string
	question   string
	reset      bool
}

func (m *mockSessionService) Upload(_ context.Context, _ string, _ io.Reader) (*domain.ActiveDocument, error) {
	return m.doc, m.err
}

func (m *mockSessionService) Open(_ context.Context, path string) (*domain.ActiveDocument, error) {
	m.openedPath = path
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.doc, nil
}

func (m *mockSessionService) Process(_ context.Context) (*domain.ProcessResult, error) {
	return m.result, m.err
}

func (m *mockSessionService) Ask(_ context.Context, question string) (*domain.ChatEntry, error) {
	m.question = question
	return m.entry, m.err
}

func (m *mockSessionService) Active(_ context.Context) (*domain.ActiveDocument, error) {
	if m.doc == nil {
		return nil, domain.ErrNoDocument
	}
	return m.doc, nil
}

func (m *mockSessionService) History(_ context.Context) ([]domain.ChatEntry, error) {
	return m.history, m.err
}

func (m *mockSessionService) ClearHistory(_ context.Context) error {
	return m.err
}

func (m *mockSessionService) Reset(_ context.Context) error {
	m.reset = true
	return m.err
}
