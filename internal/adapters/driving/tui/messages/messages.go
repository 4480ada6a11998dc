// Package messages defines Bubbletea message types for the TUI.
// Messages carry the results of session service calls back into the update loop.
package messages

import (
	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewChat is the question and transcript view.
	ViewChat ViewType = iota
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewChat:
		return "chat"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// DocumentLoaded carries the active document at startup.
// Document is nil when no document has been uploaded yet.
type DocumentLoaded struct {
	Document *domain.ActiveDocument
	Err      error
}

// DocumentProcessed carries the outcome of indexing the active document.
type DocumentProcessed struct {
	Result *domain.ProcessResult
	Err    error
}

// QuestionAsked is sent when the user submits a question.
type QuestionAsked struct {
	Question string
}

// AnswerReceived carries the recorded chat entry for a question.
type AnswerReceived struct {
	Entry *domain.ChatEntry
	Err   error
}

// HistoryLoaded carries the chat history of the active document.
type HistoryLoaded struct {
	Entries []domain.ChatEntry
	Err     error
}

// HistoryCleared signals the chat history was removed.
type HistoryCleared struct {
	Err error
}

// SessionReset signals the active document and history were forgotten.
type SessionReset struct {
	Err error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
