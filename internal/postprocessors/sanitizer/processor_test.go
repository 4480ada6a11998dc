package sanitizer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

type layout struct {
	Headings []string `json:"headings"`
	Page     int      `json:"page"`
}

type panicky struct{}

func (panicky) MarshalJSON() ([]byte, error) {
	panic("boom")
}

func newChunk(meta map[string]any) *domain.Chunk {
	return &domain.Chunk{
		ID:           "0f8fad5b-d9cb-469f-a165-70867728950e",
		DocumentHash: "deadbeef",
		DocumentName: "policy.pdf",
		Content:      "some text",
		Metadata:     meta,
	}
}

func TestProcessor_Name(t *testing.T) {
	assert.Equal(t, "sanitizer", New().Name())
}

func TestSanitize_BaseKeys(t *testing.T) {
	got := Sanitize(newChunk(nil))

	assert.Equal(t, map[string]any{
		KeyHash:    "deadbeef",
		KeyName:    "policy.pdf",
		KeyChunkID: "0f8fad5b",
	}, got)
}

func TestSanitize_BaseKeysWinOverSource(t *testing.T) {
	got := Sanitize(newChunk(map[string]any{
		KeyHash: "other",
		KeyName: "other.pdf",
	}))

	assert.Equal(t, "deadbeef", got[KeyHash])
	assert.Equal(t, "policy.pdf", got[KeyName])
}

func TestSanitize_Scalars(t *testing.T) {
	got := Sanitize(newChunk(map[string]any{
		"page":    3,
		"score":   0.75,
		"scanned": false,
		"source":  "upload.pdf",
		"empty":   "",
	}))

	assert.Equal(t, 3, got["page"])
	assert.Equal(t, 0.75, got["score"])
	assert.Equal(t, false, got["scanned"])
	assert.Equal(t, "upload.pdf", got["source"])
	assert.Equal(t, "", got["empty"])
}

func TestSanitize_LongString(t *testing.T) {
	long := strings.Repeat("a", 600)

	got := Sanitize(newChunk(map[string]any{"summary": long}))

	s, ok := got["summary"].(string)
	require.True(t, ok)
	assert.Len(t, s, MaxStringLen+len("..."))
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.Equal(t, long[:MaxStringLen], s[:MaxStringLen])
}

func TestSanitize_StringAtLimitUnchanged(t *testing.T) {
	exact := strings.Repeat("b", MaxStringLen)

	got := Sanitize(newChunk(map[string]any{"summary": exact}))

	assert.Equal(t, exact, got["summary"])
}

func TestSanitize_BracketedTextIsCapped(t *testing.T) {
	caption := "[1] Introduction " + strings.Repeat("word ", 140)

	got := Sanitize(newChunk(map[string]any{"caption": caption}))

	s, ok := got["caption"].(string)
	require.True(t, ok)
	assert.Len(t, []rune(s), MaxStringLen+len("..."))
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.Equal(t, caption[:MaxStringLen], s[:MaxStringLen])

	again := Sanitize(newChunk(got))
	assert.Equal(t, s, again["caption"])
}

func TestSanitize_Layout(t *testing.T) {
	t.Run("encoded as JSON", func(t *testing.T) {
		got := Sanitize(newChunk(map[string]any{
			KeyLayout: layout{Headings: []string{"Coverage"}, Page: 2},
		}))
		assert.Equal(t, `{"headings":["Coverage"],"page":2}`, got[KeyLayout])
	})

	t.Run("capped at 800 characters", func(t *testing.T) {
		headings := make([]string, 200)
		for i := range headings {
			headings[i] = "heading"
		}
		got := Sanitize(newChunk(map[string]any{
			KeyLayout: map[string]any{"headings": headings},
		}))
		s, ok := got[KeyLayout].(string)
		require.True(t, ok)
		assert.Len(t, s, MaxJSONLen)
	})

	t.Run("empty becomes empty string", func(t *testing.T) {
		got := Sanitize(newChunk(map[string]any{KeyLayout: map[string]any{}}))
		assert.Equal(t, "", got[KeyLayout])
	})

	t.Run("nil becomes empty string", func(t *testing.T) {
		got := Sanitize(newChunk(map[string]any{KeyLayout: nil}))
		assert.Equal(t, "", got[KeyLayout])
	})
}

func TestSanitize_NestedMapEncoded(t *testing.T) {
	got := Sanitize(newChunk(map[string]any{
		"origin": map[string]any{"filename": "a.pdf"},
	}))

	assert.Equal(t, `{"filename":"a.pdf"}`, got["origin"])
}

func TestSanitize_StringLists(t *testing.T) {
	items := make([]string, 15)
	for i := range items {
		items[i] = "tag"
	}

	got := Sanitize(newChunk(map[string]any{
		"tags":     items,
		"keywords": []any{"a", "b"},
	}))

	assert.Len(t, got["tags"], MaxListLen)
	assert.Equal(t, []string{"a", "b"}, got["keywords"])
}

func TestSanitize_Fallback(t *testing.T) {
	got := Sanitize(newChunk(map[string]any{
		"pages":   []int{1, 2, 3},
		"mixed":   []any{"a", 1},
		"missing": nil,
		"none":    []int{},
	}))

	assert.Equal(t, "[1 2 3]", got["pages"])
	assert.Equal(t, "[a 1]", got["mixed"])
	assert.Equal(t, "", got["missing"])
	assert.Equal(t, "", got["none"])
}

func TestSanitize_FallbackCapped(t *testing.T) {
	nums := make([]int, 500)

	got := Sanitize(newChunk(map[string]any{"nums": nums}))

	s, ok := got["nums"].(string)
	require.True(t, ok)
	assert.Len(t, s, MaxFallbackLen)
}

func TestSanitize_FieldPanicDoesNotAbort(t *testing.T) {
	got := Sanitize(newChunk(map[string]any{
		"broken": panicky{},
		"page":   7,
	}))

	assert.Equal(t, "", got["broken"])
	assert.Equal(t, 7, got["page"])
	assert.Equal(t, "deadbeef", got[KeyHash])
}

func TestSanitize_Idempotent(t *testing.T) {
	headings := make([]string, 120)
	for i := range headings {
		headings[i] = "section heading"
	}
	chunk := newChunk(map[string]any{
		KeyLayout: map[string]any{"headings": headings},
		"origin":  map[string]any{"filename": strings.Repeat("x", 700)},
		"extra":   map[string]any{"notes": strings.Repeat("n", 1200)},
		"caption": "[2] " + strings.Repeat("c", 650),
		"summary": strings.Repeat("s", 900),
		"tags":    []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"},
		"pages":   []int{1, 2},
		"page":    4,
		"blob":    strings.Repeat("z", 400),
		"nothing": nil,
	})

	first := Sanitize(chunk)
	chunk.Metadata = first
	second := Sanitize(chunk)

	assert.Equal(t, first, second)
}

func TestProcessor_Process(t *testing.T) {
	chunks := []domain.Chunk{
		*newChunk(map[string]any{"page": 1}),
		*newChunk(map[string]any{"page": 2}),
	}

	out, err := New().Process(context.Background(), &domain.Document{}, chunks)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 2, out[1].Metadata["page"])
	assert.Equal(t, "0f8fad5b", out[0].Metadata[KeyChunkID])
	assert.Equal(t, "some text", out[0].Content)
	// Input chunks are not modified.
	assert.NotContains(t, chunks[0].Metadata, KeyHash)
}

func TestProcessor_Process_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Process(ctx, &domain.Document{}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
