package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

type sessionFixture struct {
	clock     *fakeClock
	pipeline  *mockPipeline
	registry  *memory.DocumentRegistry
	history   *memory.ChatHistoryStore
	uploadDir string
	service   *SessionService
}

func newSessionFixture(t *testing.T, opts ...SessionOption) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		clock:     newFakeClock(),
		pipeline:  &mockPipeline{answer: &domain.Answer{Text: "It is covered.", Sources: []domain.Source{{Content: "excerpt"}}}},
		registry:  memory.NewDocumentRegistry(),
		history:   memory.NewChatHistoryStore(),
		uploadDir: filepath.Join(t.TempDir(), "uploads"),
	}
	opts = append([]SessionOption{WithSessionClock(f.clock.now)}, opts...)
	f.service = NewSessionService(f.pipeline, f.registry, f.history, f.uploadDir, opts...)
	return f
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSessionService_Upload(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.history.Append(ctx, domain.ChatEntry{DocumentHash: "old", Question: "old"}))
	content := "%PDF-1.4 health policy"

	doc, err := f.service.Upload(ctx, "My Policy (2024).pdf", strings.NewReader(content))

	require.NoError(t, err)
	assert.Equal(t, domain.ComputeHash([]byte(content)), doc.Hash)
	assert.Equal(t, "My_Policy_2024.pdf", doc.Name)
	assert.False(t, doc.Processed)
	assert.Equal(t, f.clock.now(), doc.UploadedAt)

	files := listDir(t, f.uploadDir)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], "_My_Policy_2024.pdf"))
	assert.Equal(t, filepath.Join(f.uploadDir, files[0]), doc.Path)

	active, err := f.service.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Hash, active.Hash)

	entries, err := f.history.List(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, f.pipeline.resets)
}

func TestSessionService_Upload_RejectsNonPDF(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.service.Upload(context.Background(), "notes.txt", strings.NewReader("hello"))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, listDir(t, f.uploadDir))
}

func TestSessionService_Upload_TooLarge(t *testing.T) {
	f := newSessionFixture(t, WithMaxUploadBytes(10))

	_, err := f.service.Upload(context.Background(), "big.pdf", strings.NewReader(strings.Repeat("x", 11)))

	assert.ErrorIs(t, err, domain.ErrTooLarge)
	assert.Empty(t, listDir(t, f.uploadDir))
	_, err = f.service.Active(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDocument)
}

func TestSessionService_Upload_AtLimit(t *testing.T) {
	f := newSessionFixture(t, WithMaxUploadBytes(10))

	_, err := f.service.Upload(context.Background(), "ok.pdf", strings.NewReader(strings.Repeat("x", 10)))

	assert.NoError(t, err)
}

func TestSessionService_Upload_Empty(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.service.Upload(context.Background(), "empty.pdf", strings.NewReader(""))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, listDir(t, f.uploadDir))
}

func TestSessionService_Upload_ReplacesPreviousUpload(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	first, err := f.service.Upload(ctx, "first.pdf", strings.NewReader("%PDF first"))
	require.NoError(t, err)
	second, err := f.service.Upload(ctx, "second.pdf", strings.NewReader("%PDF second"))
	require.NoError(t, err)

	_, err = os.Stat(first.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(second.Path)
	assert.NoError(t, err)
	assert.Len(t, listDir(t, f.uploadDir), 1)
}

func TestSessionService_Open_KeepsUserFile(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	path, hash := writePDF(t, "mine.pdf", "%PDF mine")

	doc, err := f.service.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, hash, doc.Hash)
	assert.Equal(t, "mine.pdf", doc.Name)

	_, err = f.service.Upload(ctx, "other.pdf", strings.NewReader("%PDF other"))
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err, "opened file must not be removed")
}

func TestSessionService_Open_Errors(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.service.Open(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.service.Open(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSessionService_Process(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	doc, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
	require.NoError(t, err)

	result, err := f.service.Process(ctx)

	require.NoError(t, err)
	assert.Equal(t, doc.Hash, result.Hash)
	require.Len(t, f.pipeline.processReqs, 1)
	assert.Equal(t, doc.Path, f.pipeline.processReqs[0].Path)
	assert.Equal(t, doc.Hash, f.pipeline.processReqs[0].Hash)

	active, err := f.service.Active(ctx)
	require.NoError(t, err)
	assert.True(t, active.Processed)
}

func TestSessionService_Process_NoDocument(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.service.Process(context.Background())

	assert.ErrorIs(t, err, domain.ErrNoDocument)
	assert.Empty(t, f.pipeline.processReqs)
}

func TestSessionService_Process_FileRemoved(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	doc, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(doc.Path))

	_, err = f.service.Process(ctx)

	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "re-upload")
}

func TestSessionService_Process_PipelineFails(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
	require.NoError(t, err)
	f.pipeline.processErr = domain.ErrNoChunks

	_, err = f.service.Process(ctx)

	require.ErrorIs(t, err, domain.ErrNoChunks)
	active, err := f.service.Active(ctx)
	require.NoError(t, err)
	assert.False(t, active.Processed)
}

func TestSessionService_Ask(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	doc, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
	require.NoError(t, err)
	_, err = f.service.Process(ctx)
	require.NoError(t, err)
	f.pipeline.onAnswer = func() { f.clock.advance(1234 * time.Millisecond) }

	entry, err := f.service.Ask(ctx, "  Is flood covered?  ")

	require.NoError(t, err)
	assert.Equal(t, "Is flood covered?", entry.Question)
	assert.Equal(t, "It is covered.", entry.Answer)
	assert.Equal(t, 1.23, entry.ResponseTime)
	assert.Equal(t, doc.Hash, entry.DocumentHash)
	assert.Len(t, entry.Sources, 1)

	history, err := f.service.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Is flood covered?", history[0].Question)
}

func TestSessionService_Ask_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no document", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.service.Ask(ctx, "q")
		assert.ErrorIs(t, err, domain.ErrNoDocument)
	})

	t.Run("not processed", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
		require.NoError(t, err)

		_, err = f.service.Ask(ctx, "q")
		assert.ErrorIs(t, err, domain.ErrNotProcessed)
		assert.Empty(t, f.pipeline.questions)
	})

	t.Run("empty question", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
		require.NoError(t, err)
		_, err = f.service.Process(ctx)
		require.NoError(t, err)

		_, err = f.service.Ask(ctx, "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("answer fails", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
		require.NoError(t, err)
		_, err = f.service.Process(ctx)
		require.NoError(t, err)
		f.pipeline.answerErr = errors.New("generation failed")

		_, err = f.service.Ask(ctx, "q")
		require.Error(t, err)

		history, err := f.service.History(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestSessionService_History_NoDocument(t *testing.T) {
	f := newSessionFixture(t)

	history, err := f.service.History(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestSessionService_ClearHistory(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	doc, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
	require.NoError(t, err)
	require.NoError(t, f.history.Append(ctx, domain.ChatEntry{DocumentHash: doc.Hash, Question: "q"}))

	require.NoError(t, f.service.ClearHistory(ctx))

	history, err := f.service.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSessionService_Reset(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	doc, err := f.service.Upload(ctx, "policy.pdf", strings.NewReader("%PDF policy"))
	require.NoError(t, err)
	require.NoError(t, f.history.Append(ctx, domain.ChatEntry{DocumentHash: doc.Hash, Question: "q"}))

	require.NoError(t, f.service.Reset(ctx))

	_, err = os.Stat(doc.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = f.service.Active(ctx)
	assert.ErrorIs(t, err, domain.ErrNoDocument)
	entries, err := f.history.List(ctx, doc.Hash)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 2, f.pipeline.resets)
}

func TestSessionService_Reset_NothingActive(t *testing.T) {
	f := newSessionFixture(t)

	assert.NoError(t, f.service.Reset(context.Background()))
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"policy.pdf", "policy.pdf"},
		{"My Policy.pdf", "My_Policy.pdf"},
		{"../../etc/passwd.pdf", "etc_passwd.pdf"},
		{"  spaced   out .pdf", "spaced_out_.pdf"},
		{"ünïcødé.pdf", "ncd.pdf"},
		{".hidden.pdf", "hidden.pdf"},
		{"...", "document.pdf"},
		{".pdf", "document.pdf"},
		{"", "document.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, secureFilename(tt.in))
		})
	}
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF("a.pdf"))
	assert.True(t, isPDF("A.PDF"))
	assert.False(t, isPDF("a.pdf.txt"))
	assert.False(t, isPDF("pdf"))
}
