// Package chat provides the question and answer view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/components/transcript"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
)

// reservedLines is the height taken by the title, input and status bar.
const reservedLines = 7

// View is the chat view: a scrollable transcript above a question input.
type View struct {
	ctx     context.Context
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	session driving.SessionService

	input      *input.QuestionInput
	transcript *transcript.Transcript
	statusBar  *status.Bar
	viewport   viewport.Model
	spinner    spinner.Model

	document *domain.ActiveDocument
	busy     bool
	err      error
	width    int
	height   int
}

// NewView creates a new chat view.
func NewView(ctx context.Context, s *styles.Styles, km *keymap.KeyMap, session driving.SessionService) *View {
	if ctx == nil {
		ctx = context.Background()
	}
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Warning

	v := &View{
		ctx:        ctx,
		styles:     s,
		keymap:     km,
		session:    session,
		input:      input.NewQuestionInput(s),
		transcript: transcript.New(s),
		statusBar:  status.NewBar(s, km),
		viewport:   viewport.New(80, 17),
		spinner:    sp,
		width:      80,
		height:     24,
	}
	v.refresh()
	return v
}

// Init loads the active document.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.input.Init(), v.loadDocument())
}

// ==================== Commands ====================

func (v *View) loadDocument() tea.Cmd {
	return func() tea.Msg {
		doc, err := v.session.Active(v.ctx)
		if errors.Is(err, domain.ErrNoDocument) {
			return messages.DocumentLoaded{}
		}
		return messages.DocumentLoaded{Document: doc, Err: err}
	}
}

func (v *View) loadHistory() tea.Cmd {
	return func() tea.Msg {
		entries, err := v.session.History(v.ctx)
		return messages.HistoryLoaded{Entries: entries, Err: err}
	}
}

func (v *View) process() tea.Cmd {
	return func() tea.Msg {
		result, err := v.session.Process(v.ctx)
		return messages.DocumentProcessed{Result: result, Err: err}
	}
}

func (v *View) ask(question string) tea.Cmd {
	return func() tea.Msg {
		entry, err := v.session.Ask(v.ctx, question)
		return messages.AnswerReceived{Entry: entry, Err: err}
	}
}

func (v *View) clearHistory() tea.Cmd {
	return func() tea.Msg {
		return messages.HistoryCleared{Err: v.session.ClearHistory(v.ctx)}
	}
}

func (v *View) reset() tea.Cmd {
	return func() tea.Msg {
		return messages.SessionReset{Err: v.session.Reset(v.ctx)}
	}
}

// ==================== Update ====================

// Update handles messages for the chat view.
//
//nolint:gocyclo // message dispatch
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case spinner.TickMsg:
		if !v.busy {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case messages.DocumentLoaded:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.setDocument(msg.Document)
		if msg.Document == nil {
			return v, nil
		}
		return v, v.loadHistory()

	case messages.HistoryLoaded:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.transcript.SetEntries(msg.Entries)
		v.refresh()
		v.viewport.GotoBottom()
		return v, nil

	case messages.DocumentProcessed:
		v.busy = false
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		if v.document != nil {
			v.document.Processed = true
		}
		v.setDocument(v.document)
		if msg.Result != nil && msg.Result.IsExisting {
			v.statusBar.SetMessage("Loaded existing index")
		} else if msg.Result != nil {
			v.statusBar.SetMessage(fmt.Sprintf("Created %d chunks", msg.Result.ChunkCount))
		}
		return v, nil

	case messages.AnswerReceived:
		v.busy = false
		if msg.Err != nil {
			v.transcript.SetPending("")
			v.setError(msg.Err)
			return v, nil
		}
		if msg.Entry != nil {
			v.transcript.Append(*msg.Entry)
		}
		v.setDocument(v.document)
		v.viewport.GotoBottom()
		return v, nil

	case messages.HistoryCleared:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.transcript.Clear()
		v.setDocument(v.document)
		v.statusBar.SetMessage("Chat cleared")
		return v, nil

	case messages.SessionReset:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.transcript.Clear()
		v.setDocument(nil)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()

	switch {
	case keymap.Matches(k, v.keymap.ScrollUp):
		v.viewport.SetYOffset(v.viewport.YOffset - v.viewport.Height)
		return v, nil

	case keymap.Matches(k, v.keymap.ScrollDown):
		v.viewport.SetYOffset(v.viewport.YOffset + v.viewport.Height)
		return v, nil
	}

	if v.busy {
		return v, nil
	}

	switch {
	case keymap.Matches(k, v.keymap.Ask):
		return v, v.submit()

	case keymap.Matches(k, v.keymap.Process):
		if v.document == nil {
			v.setError(domain.ErrNoDocument)
			return v, nil
		}
		v.busy = true
		v.err = nil
		v.statusBar.SetMessage("")
		v.statusBar.SetState(status.StateProcessing)
		return v, tea.Batch(v.spinner.Tick, v.process())

	case keymap.Matches(k, v.keymap.ClearChat):
		return v, v.clearHistory()

	case keymap.Matches(k, v.keymap.Reset):
		return v, v.reset()
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit sends the typed question when it is not blank.
func (v *View) submit() tea.Cmd {
	question := v.input.Question()
	if question == "" {
		return nil
	}
	if v.document == nil {
		v.setError(domain.ErrNoDocument)
		return nil
	}
	if !v.document.Processed {
		v.setError(domain.ErrNotProcessed)
		return nil
	}

	v.busy = true
	v.err = nil
	v.input.Reset()
	v.transcript.SetPending(question)
	v.statusBar.SetMessage("")
	v.statusBar.SetState(status.StateThinking)
	v.refresh()
	v.viewport.GotoBottom()

	return tea.Batch(v.spinner.Tick, v.ask(question))
}

// ==================== State ====================

func (v *View) setDocument(doc *domain.ActiveDocument) {
	v.document = doc
	v.err = nil
	v.statusBar.SetMessage("")
	if doc == nil {
		v.statusBar.Clear()
	} else {
		v.statusBar.SetDocument(doc.Name, doc.Processed)
		v.statusBar.SetState(status.StateReady)
	}
	v.refresh()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusBar.SetMessage(errorMessage(err))
	v.statusBar.SetState(status.StateError)
	v.refresh()
}

// refresh re-renders the transcript into the viewport.
func (v *View) refresh() {
	v.viewport.SetContent(v.transcript.Render(v.viewport.Width))
}

// errorMessage maps an error to a short message for the status bar.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoDocument):
		return "no document uploaded"
	case errors.Is(err, domain.ErrNotProcessed):
		return "process the document first (ctrl+p)"
	case domain.IsTransient(err):
		return "service temporarily unavailable, try again"
	default:
		return err.Error()
	}
}

// ==================== Rendering ====================

// View renders the chat view.
func (v *View) View() string {
	var b strings.Builder

	title := "pdfqa"
	if v.document != nil {
		title = "pdfqa: " + v.document.Name
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", minInt(v.width-4, 60)))
	b.WriteString("\n")

	b.WriteString(v.viewport.View())
	b.WriteString("\n\n")

	if v.busy {
		b.WriteString(v.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(v.input.View())
	b.WriteString("\n")
	b.WriteString(v.statusBar.View())

	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height

	vpHeight := height - reservedLines
	if vpHeight < 3 {
		vpHeight = 3
	}
	v.viewport.Width = width
	v.viewport.Height = vpHeight
	v.input.SetWidth(width)
	v.statusBar.SetWidth(width)
	v.refresh()
}

// Document returns the active document, or nil.
func (v *View) Document() *domain.ActiveDocument {
	return v.document
}

// Transcript returns the transcript component.
func (v *View) Transcript() *transcript.Transcript {
	return v.transcript
}

// StatusBar returns the status bar component.
func (v *View) StatusBar() *status.Bar {
	return v.statusBar
}

// Busy reports whether a process or ask call is in flight.
func (v *View) Busy() bool {
	return v.busy
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// SetQuestion sets the input text.
func (v *View) SetQuestion(q string) {
	v.input.SetValue(q)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
