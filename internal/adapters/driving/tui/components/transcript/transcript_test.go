package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

func TestNew(t *testing.T) {
	tr := New(nil)

	require.NotNil(t, tr)
	assert.Equal(t, 0, tr.Len())
	assert.Contains(t, tr.Render(80), "No questions yet")
}

func TestTranscript_RenderEntries(t *testing.T) {
	tr := New(nil)
	tr.SetEntries([]domain.ChatEntry{
		{
			Question:     "What is covered?",
			Answer:       "Fire and theft.",
			ResponseTime: 1.5,
			Sources: []domain.Source{
				{Content: "Section 2 covers fire", Metadata: map[string]any{"page": 2}},
			},
		},
		{Question: "What is excluded?", Answer: "Floods."},
	})

	out := tr.Render(100)

	assert.Contains(t, out, "What is covered?")
	assert.Contains(t, out, "Fire and theft.")
	assert.Contains(t, out, "(1.50s)")
	assert.Contains(t, out, "p.2")
	assert.Contains(t, out, "Section 2 covers fire")
	assert.Contains(t, out, "Floods.")
	assert.Less(t, strings.Index(out, "What is covered?"), strings.Index(out, "What is excluded?"))
}

func TestTranscript_LimitsSources(t *testing.T) {
	tr := New(nil)
	sources := make([]domain.Source, 5)
	for i := range sources {
		sources[i] = domain.Source{Content: "chunk"}
	}
	tr.Append(domain.ChatEntry{Question: "q", Answer: "a", Sources: sources})

	out := tr.Render(100)

	assert.Contains(t, out, "[3]")
	assert.NotContains(t, out, "[4]")
	assert.Contains(t, out, "+2 more sources")
}

func TestTranscript_TruncatesSnippets(t *testing.T) {
	tr := New(nil)

	line := tr.sourceLine(0, domain.Source{Content: strings.Repeat("x", DefaultSnippetLength+50)})

	assert.True(t, strings.HasSuffix(line, "..."))
	assert.Equal(t, "[1]: "+strings.Repeat("x", DefaultSnippetLength)+"...", line)
}

func TestTranscript_SourceLineCollapsesWhitespace(t *testing.T) {
	tr := New(nil)

	line := tr.sourceLine(1, domain.Source{
		Content:  "first\n\nsecond   third",
		Metadata: map[string]any{"page": float64(4)},
	})

	assert.Equal(t, "[2] p.4: first second third", line)
}

func TestTranscript_Pending(t *testing.T) {
	tr := New(nil)
	tr.SetPending("Still thinking?")

	assert.Contains(t, tr.Render(80), "Still thinking?")

	tr.Append(domain.ChatEntry{Question: "Still thinking?", Answer: "No."})
	assert.Equal(t, 1, tr.Len())
	assert.Contains(t, tr.Render(80), "No.")
}

func TestTranscript_Clear(t *testing.T) {
	tr := New(nil)
	tr.Append(domain.ChatEntry{Question: "q", Answer: "a"})
	tr.SetPending("p")

	tr.Clear()

	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Entries())
	assert.Contains(t, tr.Render(80), "No questions yet")
}

func TestTranscript_SetEntriesCopies(t *testing.T) {
	tr := New(nil)
	entries := []domain.ChatEntry{{Question: "q", Answer: "a"}}

	tr.SetEntries(entries)
	entries[0].Answer = "changed"

	assert.Equal(t, "a", tr.Entries()[0].Answer)
}
