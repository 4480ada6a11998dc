// Package watch indexes PDFs as they appear in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is processed.
// Copying a large PDF produces a burst of write events.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watch: watcher is closed")

// Result reports the outcome of processing one file.
type Result struct {
	Path   string
	Result *domain.ProcessResult
	Err    error
}

// Watcher processes new and changed PDFs in a directory.
type Watcher struct {
	root        string
	pipeline    driving.PipelineService
	debounce    time.Duration
	initialScan bool

	mu     sync.Mutex
	closed bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a changed file is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithInitialScan processes PDFs already present when watching starts.
func WithInitialScan() Option {
	return func(w *Watcher) {
		w.initialScan = true
	}
}

// New creates a watcher for root.
func New(root string, pipeline driving.PipelineService, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		pipeline: pipeline,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts watching and returns a channel of results.
// The channel is closed when ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) (<-chan Result, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(w.root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.root, err)
	}

	out := make(chan Result)
	go w.loop(ctx, fw, out)
	return out, nil
}

// Close prevents further calls to Watch. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- Result) {
	defer close(out)
	defer fw.Close()

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	if w.initialScan {
		for _, path := range w.existingPDFs() {
			schedule(path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if path, ok := w.handleFsEvent(event); ok {
				logger.Debug("watch: %s %s", event.Op, path)
				schedule(path)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch: %v", err)

		case path := <-ready:
			delete(timers, path)
			res := w.process(ctx, path)
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleFsEvent returns the path to process for event, if any.
// Only creates and writes of visible .pdf files count.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if !isCandidate(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) existingPDFs() []string {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		logger.Warn("watch: scanning %s: %v", w.root, err)
		return nil
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isCandidate(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(w.root, entry.Name()))
	}
	return paths
}

func (w *Watcher) process(ctx context.Context, path string) Result {
	logger.Info("watch: processing %s", path)
	result, err := w.pipeline.Process(ctx, driving.ProcessRequest{
		Path: path,
		Name: filepath.Base(path),
	})
	if err != nil {
		logger.Warn("watch: processing %s: %v", path, err)
	}
	return Result{Path: path, Result: result, Err: err}
}

func isCandidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
