// Package pdf loads PDF files by extracting their text with pdftotext.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Verify interface compliance.
var _ driven.DocumentLoader = (*Loader)(nil)

// MIMEType is the media type of loaded documents.
const MIMEType = "application/pdf"

// maxTitleLen bounds the line length accepted as a title.
const maxTitleLen = 200

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = fmt.Errorf("%w: pdftotext not found in PATH", domain.ErrToolMissing)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Loader extracts page text from PDF files.
type Loader struct {
	runner CommandRunner
	now    func() time.Time
}

// New creates a loader that shells out to pdftotext.
func New() *Loader {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates a loader with a custom command runner.
func NewWithRunner(runner CommandRunner) *Loader {
	return &Loader{
		runner: runner,
		now:    time.Now,
	}
}

// CheckAvailable reports whether pdftotext can be found.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns how to install pdftotext on common platforms.
func InstallInstructions() string {
	return `pdftotext is required to read PDF files. Install poppler:
  macOS:          brew install poppler
  Debian/Ubuntu:  apt install poppler-utils
  Fedora:         dnf install poppler-utils`
}

// Load reads the PDF at path and returns one segment per page with text.
// Pages are separated by form feeds in pdftotext output.
func (l *Loader) Load(ctx context.Context, path, name string) (*domain.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	hash, err := domain.HashFile(path)
	if err != nil {
		return nil, err
	}

	logger.Debug("extracting text from %s", path)
	out, err := l.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", "-layout", path, "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	origin := map[string]any{
		"filename": name,
		"mimetype": MIMEType,
	}

	var segments []domain.Segment
	pages := strings.Split(string(out), "\f")
	for i, page := range pages {
		text := strings.TrimRight(page, " \t\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		pageNo := i + 1
		segments = append(segments, domain.Segment{
			Content: text,
			Metadata: map[string]any{
				"source": path,
				"page":   pageNo,
				"dl_meta": map[string]any{
					"origin":   copyMetadata(origin),
					"page_no":  pageNo,
					"headings": headings(text),
				},
			},
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoContent, name)
	}
	logger.Debug("extracted %d pages from %s", len(segments), name)

	return &domain.Document{
		Hash:     hash,
		Name:     name,
		Path:     path,
		Title:    extractTitle(segments[0].Content, path),
		Segments: segments,
		Metadata: map[string]any{
			"mime_type": MIMEType,
			"format":    "pdf",
			"pages":     len(pages),
		},
		LoadedAt: l.now(),
	}, nil
}

// extractTitle returns the first short non-empty line, or a title derived
// from the filename.
func extractTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > maxTitleLen || strings.ContainsRune(line, 0) {
			continue
		}
		return line
	}

	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}

// headings returns up to three short all-caps lines from a page.
func headings(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 || len(line) > 80 || strings.ToUpper(line) != line || strings.ToLower(line) == line {
			continue
		}
		out = append(out, line)
		if len(out) == 3 {
			break
		}
	}
	return out
}

func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
