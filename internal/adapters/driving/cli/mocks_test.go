package cli

import (
	"context"
	"io"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
)

// mockPipelineService is a mock implementation of driving.PipelineService.
type mockPipelineService struct {
	answer    *domain.Answer
	err       error
	processed map[domain.DocumentHash]bool

	askedHash     domain.DocumentHash
	askedQuestion string
}

func (m *mockPipelineService) Process(_ context.Context, req driving.ProcessRequest) (*domain.ProcessResult, error) {
	return &domain.ProcessResult{Hash: req.Hash, ChunkCount: 1}, m.err
}

func (m *mockPipelineService) Answer(_ context.Context, hash domain.DocumentHash, question string) (*domain.Answer, error) {
	m.askedHash = hash
	m.askedQuestion = question
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

func (m *mockPipelineService) IsProcessed(_ context.Context, hash domain.DocumentHash) bool {
	return m.processed[hash]
}

func (m *mockPipelineService) Reset() {}

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	doc     *domain.ActiveDocument
	result  *domain.ProcessResult
	history []domain.ChatEntry
	err     error

	openedPath string
	reset      bool
}

func (m *mockSessionService) Upload(_ context.Context, _ string, _ io.Reader) (*domain.ActiveDocument, error) {
	return m.doc, m.err
}

func (m *mockSessionService) Open(_ context.Context, path string) (*domain.ActiveDocument, error) {
	m.openedPath = path
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

func (m *mockSessionService) Process(_ context.Context) (*domain.ProcessResult, error) {
	return m.result, m.err
}

func (m *mockSessionService) Ask(_ context.Context, question string) (*domain.ChatEntry, error) {
	return &domain.ChatEntry{Question: question}, m.err
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

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	connectErr  error
	setErr      error

	set  map[string]string
	keys map[string]string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{
		settings: domain.DefaultAppSettings(),
		set:      make(map[string]string),
		keys:     make(map[string]string),
	}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) SetAPIKey(target, key string) error {
	if key == "" {
		return domain.ErrInvalidInput
	}
	m.keys[target] = key
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateConnectivity() error {
	return m.connectErr
}
