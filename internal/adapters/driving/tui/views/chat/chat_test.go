package chat

import (
	"context"
	"errors"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// mockSession is a mock implementation of driving.SessionService.
type mockSession struct {
	doc      *domain.ActiveDocument
	result   *domain.ProcessResult
	entry    *domain.ChatEntry
	history  []domain.ChatEntry
	err      error
	question string
	cleared  bool
	reset    bool
}

func (m *mockSession) Upload(_ context.Context, _ string, _ io.Reader) (*domain.ActiveDocument, error) {
	return m.doc, m.err
}

func (m *mockSession) Open(_ context.Context, _ string) (*domain.ActiveDocument, error) {
	return m.doc, m.err
}

func (m *mockSession) Process(_ context.Context) (*domain.ProcessResult, error) {
	return m.result, m.err
}

func (m *mockSession) Ask(_ context.Context, question string) (*domain.ChatEntry, error) {
	m.question = question
	return m.entry, m.err
}

func (m *mockSession) Active(_ context.Context) (*domain.ActiveDocument, error) {
	if m.doc == nil {
		return nil, domain.ErrNoDocument
	}
	return m.doc, nil
}

func (m *mockSession) History(_ context.Context) ([]domain.ChatEntry, error) {
	return m.history, m.err
}

func (m *mockSession) ClearHistory(_ context.Context) error {
	m.cleared = true
	return m.err
}

func (m *mockSession) Reset(_ context.Context) error {
	m.reset = true
	return m.err
}

func newTestView(session *mockSession) *View {
	v := NewView(context.Background(), nil, nil, session)
	v.SetDimensions(100, 30)
	return v
}

func processedDoc() *domain.ActiveDocument {
	return &domain.ActiveDocument{Hash: "0123abcd", Name: "policy.pdf", Processed: true}
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, nil, &mockSession{})

	require.NotNil(t, v)
	assert.Nil(t, v.Document())
	assert.False(t, v.Busy())
	assert.NotNil(t, v.Init())
}

func TestView_LoadDocument(t *testing.T) {
	t.Run("no document", func(t *testing.T) {
		v := newTestView(&mockSession{})

		msg := v.loadDocument()()

		loaded, ok := msg.(messages.DocumentLoaded)
		require.True(t, ok)
		assert.Nil(t, loaded.Document)
		assert.NoError(t, loaded.Err)
	})

	t.Run("active document loads history", func(t *testing.T) {
		session := &mockSession{
			doc:     processedDoc(),
			history: []domain.ChatEntry{{Question: "Earlier?", Answer: "Yes."}},
		}
		v := newTestView(session)

		_, cmd := v.Update(v.loadDocument()())
		require.NotNil(t, cmd)
		assert.Equal(t, "policy.pdf", v.Document().Name)
		assert.Equal(t, status.StateReady, v.StatusBar().State())

		v.Update(cmd())
		assert.Equal(t, 1, v.Transcript().Len())
		assert.Contains(t, v.View(), "Earlier?")
	})
}

func TestView_AskFlow(t *testing.T) {
	session := &mockSession{
		doc: processedDoc(),
		entry: &domain.ChatEntry{
			Question: "What is covered?",
			Answer:   "Fire and theft.",
			Sources:  []domain.Source{{Content: "Section 2"}},
		},
	}
	v := newTestView(session)
	v.Update(messages.DocumentLoaded{Document: session.doc})
	v.SetQuestion("  What is covered?  ")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.True(t, v.Busy())
	assert.Equal(t, status.StateThinking, v.StatusBar().State())
	assert.Contains(t, v.View(), "What is covered?")

	// Keys other than scrolling are ignored while busy.
	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	v.Update(v.ask("What is covered?")())
	assert.Equal(t, "What is covered?", session.question)
	assert.False(t, v.Busy())
	assert.Equal(t, 1, v.Transcript().Len())
	assert.Contains(t, v.View(), "Fire and theft.")
}

func TestView_AskBlankQuestionIsIgnored(t *testing.T) {
	v := newTestView(&mockSession{doc: processedDoc()})
	v.Update(messages.DocumentLoaded{Document: processedDoc()})
	v.SetQuestion("   ")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, v.Busy())
}

func TestView_AskRequiresProcessedDocument(t *testing.T) {
	t.Run("no document", func(t *testing.T) {
		v := newTestView(&mockSession{})
		v.SetQuestion("Hello?")

		v.Update(tea.KeyMsg{Type: tea.KeyEnter})

		assert.ErrorIs(t, v.Err(), domain.ErrNoDocument)
		assert.Equal(t, status.StateError, v.StatusBar().State())
	})

	t.Run("not processed", func(t *testing.T) {
		v := newTestView(&mockSession{})
		v.Update(messages.DocumentLoaded{Document: &domain.ActiveDocument{Hash: "0123abcd", Name: "a.pdf"}})
		v.SetQuestion("Hello?")

		v.Update(tea.KeyMsg{Type: tea.KeyEnter})

		assert.ErrorIs(t, v.Err(), domain.ErrNotProcessed)
		assert.Contains(t, v.StatusBar().Message(), "ctrl+p")
	})
}

func TestView_AskFailure(t *testing.T) {
	v := newTestView(&mockSession{doc: processedDoc()})
	v.Update(messages.DocumentLoaded{Document: processedDoc()})

	v.Update(messages.AnswerReceived{Err: domain.ErrLLMUnavailable})

	assert.ErrorIs(t, v.Err(), domain.ErrLLMUnavailable)
	assert.Equal(t, "service temporarily unavailable, try again", v.StatusBar().Message())
	assert.Equal(t, 0, v.Transcript().Len())
}

func TestView_Process(t *testing.T) {
	session := &mockSession{
		doc:    &domain.ActiveDocument{Hash: "0123abcd", Name: "policy.pdf"},
		result: &domain.ProcessResult{Hash: "0123abcd", ChunkCount: 7},
	}
	v := newTestView(session)
	v.Update(messages.DocumentLoaded{Document: session.doc})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlP})

	require.NotNil(t, cmd)
	assert.True(t, v.Busy())
	assert.Equal(t, status.StateProcessing, v.StatusBar().State())

	v.Update(v.process()())
	assert.False(t, v.Busy())
	assert.True(t, v.Document().Processed)
	assert.Equal(t, "Created 7 chunks", v.StatusBar().Message())
}

func TestView_ProcessExisting(t *testing.T) {
	v := newTestView(&mockSession{})
	v.Update(messages.DocumentLoaded{Document: &domain.ActiveDocument{Hash: "0123abcd", Name: "a.pdf"}})

	v.Update(messages.DocumentProcessed{Result: &domain.ProcessResult{IsExisting: true}})

	assert.Equal(t, "Loaded existing index", v.StatusBar().Message())
}

func TestView_ProcessWithoutDocument(t *testing.T) {
	v := newTestView(&mockSession{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlP})

	assert.Nil(t, cmd)
	assert.ErrorIs(t, v.Err(), domain.ErrNoDocument)
}

func TestView_ClearChat(t *testing.T) {
	session := &mockSession{doc: processedDoc()}
	v := newTestView(session)
	v.Update(messages.DocumentLoaded{Document: session.doc})
	v.Update(messages.HistoryLoaded{Entries: []domain.ChatEntry{{Question: "q", Answer: "a"}}})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	require.NotNil(t, cmd)
	v.Update(cmd())

	assert.True(t, session.cleared)
	assert.Equal(t, 0, v.Transcript().Len())
	assert.Equal(t, "Chat cleared", v.StatusBar().Message())
}

func TestView_Reset(t *testing.T) {
	session := &mockSession{doc: processedDoc()}
	v := newTestView(session)
	v.Update(messages.DocumentLoaded{Document: session.doc})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	v.Update(cmd())

	assert.True(t, session.reset)
	assert.Nil(t, v.Document())
	assert.Equal(t, status.StateNoDocument, v.StatusBar().State())
}

func TestView_ErrorOccurred(t *testing.T) {
	v := newTestView(&mockSession{})

	v.Update(messages.ErrorOccurred{Err: errors.New("disk full")})

	assert.EqualError(t, v.Err(), "disk full")
	assert.Contains(t, v.View(), "disk full")
}

func TestView_TypingUpdatesInput(t *testing.T) {
	v := newTestView(&mockSession{})

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})

	assert.Equal(t, "hi", v.input.Value())
}

func TestView_SetDimensions(t *testing.T) {
	v := newTestView(&mockSession{})

	v.SetDimensions(120, 40)

	assert.Equal(t, 120, v.viewport.Width)
	assert.Equal(t, 40-reservedLines, v.viewport.Height)
	assert.Equal(t, 120, v.StatusBar().Width())

	v.SetDimensions(10, 2)
	assert.Equal(t, 3, v.viewport.Height)
}
