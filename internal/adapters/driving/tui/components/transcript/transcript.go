// Package transcript renders the question and answer history of a document.
package transcript

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/pdfqa/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

const (
	// DefaultMaxSources is the number of sources listed under each answer.
	DefaultMaxSources = 3

	// DefaultSnippetLength caps the characters shown per source.
	DefaultSnippetLength = 160
)

// Transcript holds chat entries and renders them for a given width.
type Transcript struct {
	styles        *styles.Styles
	entries       []domain.ChatEntry
	pending       string
	maxSources    int
	snippetLength int
}

// New creates an empty transcript.
func New(s *styles.Styles) *Transcript {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Transcript{
		styles:        s,
		maxSources:    DefaultMaxSources,
		snippetLength: DefaultSnippetLength,
	}
}

// SetEntries replaces the entries.
func (t *Transcript) SetEntries(entries []domain.ChatEntry) {
	t.entries = append([]domain.ChatEntry(nil), entries...)
}

// Append adds an entry to the end and clears the pending question.
func (t *Transcript) Append(entry domain.ChatEntry) {
	t.entries = append(t.entries, entry)
	t.pending = ""
}

// SetPending shows a question that is still waiting for its answer.
func (t *Transcript) SetPending(question string) {
	t.pending = question
}

// Clear removes all entries.
func (t *Transcript) Clear() {
	t.entries = nil
	t.pending = ""
}

// Entries returns the entries.
func (t *Transcript) Entries() []domain.ChatEntry {
	return t.entries
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Render returns the transcript wrapped to width.
func (t *Transcript) Render(width int) string {
	if width < 20 {
		width = 20
	}

	if len(t.entries) == 0 && t.pending == "" {
		return t.styles.Muted.Render("No questions yet.")
	}

	var b strings.Builder
	for i, entry := range t.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		t.renderEntry(&b, entry, width)
	}

	if t.pending != "" {
		if len(t.entries) > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(t.styles.Question.Width(width).Render("Q: " + t.pending))
	}

	return b.String()
}

func (t *Transcript) renderEntry(b *strings.Builder, entry domain.ChatEntry, width int) {
	b.WriteString(t.styles.Question.Width(width).Render("Q: " + entry.Question))
	b.WriteString("\n")
	b.WriteString(t.styles.Answer.Width(width).Render("A: " + entry.Answer))

	if entry.ResponseTime > 0 {
		b.WriteString("\n")
		b.WriteString(t.styles.Muted.Render(fmt.Sprintf("(%.2fs)", entry.ResponseTime)))
	}

	for i, src := range entry.Sources {
		if i >= t.maxSources {
			b.WriteString("\n")
			b.WriteString(t.styles.Muted.Render(
				fmt.Sprintf("  +%d more sources", len(entry.Sources)-t.maxSources)))
			break
		}
		b.WriteString("\n")
		b.WriteString(t.styles.Source.Width(width).Render(t.sourceLine(i, src)))
	}
}

// sourceLine formats one source as "[n] p.X: snippet".
func (t *Transcript) sourceLine(i int, src domain.Source) string {
	label := fmt.Sprintf("[%d]", i+1)
	if page, ok := src.Metadata["page"]; ok {
		label += fmt.Sprintf(" p.%v", page)
	}

	snippet := strings.Join(strings.Fields(src.Content), " ")
	runes := []rune(snippet)
	if len(runes) > t.snippetLength {
		snippet = string(runes[:t.snippetLength]) + "..."
	}
	return label + ": " + snippet
}
