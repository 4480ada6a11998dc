package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// SessionService tracks the active document and its chat history on top of
// the pipeline service.
type SessionService struct {
	pipeline  driving.PipelineService
	registry  driven.DocumentRegistry
	history   driven.ChatHistoryStore
	uploadDir string
	maxUpload int64
	now       func() time.Time

	// mu serialises changes of the active document.
	mu sync.Mutex
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithMaxUploadBytes sets the upload size limit.
func WithMaxUploadBytes(n int64) SessionOption {
	return func(s *SessionService) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithSessionClock replaces the clock used for timestamps and response times.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionService creates a session service that stores uploads in uploadDir.
func NewSessionService(
	pipeline driving.PipelineService,
	registry driven.DocumentRegistry,
	history driven.ChatHistoryStore,
	uploadDir string,
	opts ...SessionOption,
) *SessionService {
	s := &SessionService{
		pipeline:  pipeline,
		registry:  registry,
		history:   history,
		uploadDir: uploadDir,
		maxUpload: domain.DefaultMaxUploadBytes,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores a PDF as {uuid}_{name} in the upload directory and makes it the
// active document. The previous upload is removed and the chat history cleared.
func (s *SessionService) Upload(ctx context.Context, filename string, r io.Reader) (*domain.ActiveDocument, error) {
	name := filepath.Base(filename)
	if filename == "" || !isPDF(name) {
		return nil, fmt.Errorf("%w: please upload a PDF file", domain.ErrInvalidInput)
	}

	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	safe := secureFilename(name)
	path := filepath.Join(s.uploadDir, uuid.New().String()+"_"+safe)
	if err := s.save(path, r); err != nil {
		return nil, err
	}

	hash, err := domain.HashFile(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	logger.Info("uploaded %s as %s (hash %s)", name, path, hash)

	doc := domain.ActiveDocument{
		Hash:       hash,
		Name:       safe,
		Path:       path,
		UploadedAt: s.now(),
	}
	if err := s.activate(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &doc, nil
}

// save copies r to path, enforcing the upload limit.
func (s *SessionService) save(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxUpload+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("save upload: %w", err)
	}
	if n > s.maxUpload {
		_ = os.Remove(path)
		return fmt.Errorf("%w: limit is %d MB", domain.ErrTooLarge, s.maxUpload/(1024*1024))
	}
	if n == 0 {
		_ = os.Remove(path)
		return fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	return nil
}

// Open makes an existing PDF on disk the active document. The file is used in
// place and never removed by the session.
func (s *SessionService) Open(ctx context.Context, path string) (*domain.ActiveDocument, error) {
	if !isPDF(path) {
		return nil, fmt.Errorf("%w: not a PDF file: %s", domain.ErrInvalidInput, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	hash, err := domain.HashFile(abs)
	if err != nil {
		return nil, err
	}

	doc := domain.ActiveDocument{
		Hash:       hash,
		Name:       filepath.Base(abs),
		Path:       abs,
		UploadedAt: s.now(),
	}
	if err := s.activate(ctx, doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// activate replaces the active document and clears state tied to the old one.
func (s *SessionService) activate(ctx context.Context, doc domain.ActiveDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removePreviousUpload(ctx, doc.Path)

	if err := s.registry.SetActive(ctx, doc); err != nil {
		return fmt.Errorf("record active document: %w", err)
	}
	if err := s.history.Clear(ctx); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	s.pipeline.Reset()
	return nil
}

// Process indexes the active document.
func (s *SessionService) Process(ctx context.Context) (*domain.ProcessResult, error) {
	doc, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(doc.Path); err != nil {
		return nil, fmt.Errorf("%w: please re-upload your document", domain.ErrNotFound)
	}

	result, err := s.pipeline.Process(ctx, driving.ProcessRequest{
		Path: doc.Path,
		Name: doc.Name,
		Hash: doc.Hash,
	})
	if err != nil {
		return nil, err
	}

	if err := s.registry.MarkProcessed(ctx, doc.Hash); err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	return result, nil
}

// Ask answers question about the active document and appends it to the history.
func (s *SessionService) Ask(ctx context.Context, question string) (*domain.ChatEntry, error) {
	doc, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	if !doc.Processed {
		return nil, fmt.Errorf("%w: process the document first", domain.ErrNotProcessed)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: please enter a question", domain.ErrInvalidInput)
	}

	start := s.now()
	answer, err := s.pipeline.Answer(ctx, doc.Hash, question)
	if err != nil {
		return nil, err
	}
	elapsed := s.now().Sub(start)

	entry := domain.ChatEntry{
		DocumentHash: doc.Hash,
		Question:     question,
		Answer:       answer.Text,
		ResponseTime: math.Round(elapsed.Seconds()*100) / 100,
		Sources:      answer.Sources,
		Timestamp:    s.now(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("record chat entry: %w", err)
	}
	return &entry, nil
}

// Active returns the active document, or domain.ErrNoDocument.
func (s *SessionService) Active(ctx context.Context) (*domain.ActiveDocument, error) {
	doc, err := s.registry.Active(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoDocument
		}
		return nil, fmt.Errorf("load active document: %w", err)
	}
	return doc, nil
}

// History returns the chat history of the active document, oldest first.
// It is empty when no document is active.
func (s *SessionService) History(ctx context.Context) ([]domain.ChatEntry, error) {
	doc, err := s.Active(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoDocument) {
			return []domain.ChatEntry{}, nil
		}
		return nil, err
	}
	entries, err := s.history.List(ctx, doc.Hash)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	if entries == nil {
		entries = []domain.ChatEntry{}
	}
	return entries, nil
}

// ClearHistory removes every chat entry.
func (s *SessionService) ClearHistory(ctx context.Context) error {
	if err := s.history.Clear(ctx); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	return nil
}

// Reset removes the uploaded file, forgets the active document, clears the
// chat history and drops cached index handles.
func (s *SessionService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Section("Reset")
	s.removePreviousUpload(ctx, "")

	if err := s.registry.ClearActive(ctx); err != nil {
		return fmt.Errorf("clear active document: %w", err)
	}
	if err := s.history.Clear(ctx); err != nil {
		return fmt.Errorf("clear chat history: %w", err)
	}
	s.pipeline.Reset()
	return nil
}

// removePreviousUpload deletes the active document's file when it was uploaded
// into the upload directory and differs from keep.
func (s *SessionService) removePreviousUpload(ctx context.Context, keep string) {
	prev, err := s.registry.Active(ctx)
	if err != nil || prev.Path == "" || prev.Path == keep {
		return
	}
	if !s.isUpload(prev.Path) {
		return
	}
	if err := os.Remove(prev.Path); err != nil && !os.IsNotExist(err) {
		logger.Warn("removing old upload %s: %v", prev.Path, err)
		return
	}
	logger.Debug("removed old upload %s", prev.Path)
}

func (s *SessionService) isUpload(path string) bool {
	dir, err := filepath.Abs(s.uploadDir)
	if err != nil {
		return false
	}
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(p) == dir
}

// isPDF reports whether name has a .pdf extension, ignoring case.
func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// secureFilename reduces name to ASCII letters, digits, dots, dashes and
// underscores so it is safe to use as a path element. Path separators and
// whitespace become underscores.
func secureFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)

	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(name), "_") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	safe := strings.Trim(b.String(), "._")
	if safe == "" || strings.EqualFold(safe, "pdf") {
		return "document.pdf"
	}
	return safe
}
