package web

import (
	"context"
	"io"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
)

var _ driving.SessionService = (*mockSessionService)(nil)

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	doc     *domain.ActiveDocument
	result  *domain.ProcessResult
	entry   *domain.ChatEntry
	history []domain.ChatEntry
	err     error

	uploadedName  string
	uploadedBytes []byte
	askedQuestion string
	cleared       bool
	reset         bool
}

func (m *mockSessionService) Upload(_ context.Context, filename string, r io.Reader) (*domain.ActiveDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.uploadedName = filename
	m.uploadedBytes = data
	return &domain.ActiveDocument{Hash: domain.ComputeHash(data), Name: filename}, nil
}

func (m *mockSessionService) Open(_ context.Context, _ string) (*domain.ActiveDocument, error) {
	return m.doc, m.err
}

func (m *mockSessionService) Process(_ context.Context) (*domain.ProcessResult, error) {
	return m.result, m.err
}

func (m *mockSessionService) Ask(_ context.Context, question string) (*domain.ChatEntry, error) {
	m.askedQuestion = question
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
	m.cleared = true
	return m.err
}

func (m *mockSessionService) Reset(_ context.Context) error {
	m.reset = true
	return m.err
}
