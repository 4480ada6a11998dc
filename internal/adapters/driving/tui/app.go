package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/views/chat"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context passed to service calls.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	// chatView is the question and transcript view.
	chatView *chat.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has received its first window size.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		chatView:    chat.NewView(context.Background(), s, km, ports.Session),
		currentView: messages.ViewChat,
	}, nil
}

// WithContext sets the context used for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView = chat.NewView(ctx, a.styles, a.keymap, a.ports.Session)
	if a.ready {
		a.chatView.SetDimensions(a.width, a.height)
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("pdfqa - Ask your PDF"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		k := msg.String()
		if keymap.Matches(k, a.keymap.Quit) {
			return a, tea.Quit
		}
		if keymap.Matches(k, a.keymap.Help) {
			return a, a.toggleHelp()
		}
		if a.currentView == messages.ViewHelp {
			if keymap.Matches(k, a.keymap.Back) {
				a.currentView = messages.ViewChat
			}
			return a, nil
		}

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	// The chat view keeps receiving service results while help is shown.
	a.chatView, cmd = a.chatView.Update(msg)
	return a, cmd
}

func (a *App) toggleHelp() tea.Cmd {
	next := messages.ViewHelp
	if a.currentView == messages.ViewHelp {
		next = messages.ViewChat
	}
	return func() tea.Msg {
		return messages.ViewChanged{View: next}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewChat:
		return a.chatView.View()
	default:
		return a.chatView.View()
	}
}

// viewHelp renders the help view from the keymap.
func (a *App) viewHelp() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")
	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Help.Render("Type a question and press enter. Answers cite the pages they came from."))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Muted.Render("[esc] back"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// ChatView returns the chat view.
func (a *App) ChatView() *chat.View {
	return a.chatView
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.chatView.SetDimensions(width, height)
}
