package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// They are written as the initial content of new prompt files.
var defaultPrompts = map[string]string{
	driven.PromptAnswer: domain.DefaultAnswerPrompt,
}

// requiredPlaceholders lists placeholders a custom prompt must keep.
// A file without them cannot carry the question and is ignored.
var requiredPlaceholders = map[string][]string{
	driven.PromptAnswer: {domain.PlaceholderContext, domain.PlaceholderInput},
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.pdfqa/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(dir, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Falls back to the embedded default when the file is missing or lacks
// a required placeholder.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil {
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	if missing := missingPlaceholders(name, prompt); len(missing) > 0 {
		logger.Warn("prompt %s is missing %s; using the built-in prompt", name, strings.Join(missing, ", "))
		prompt = defaultPrompts[name]
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// Path returns the file a prompt is read from.
func (s *PromptStore) Path(name string) string {
	return filepath.Join(s.promptDir, name+".txt")
}

// initialise creates the prompt directory and default files.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := s.Path(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func missingPlaceholders(name, prompt string) []string {
	var missing []string
	for _, p := range requiredPlaceholders[name] {
		if !strings.Contains(prompt, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	content := `# pdfqa Prompts

This directory contains the prompt used to answer questions about your PDF.

## Files

- ` + "`answer.txt`" + ` - Instructions and layout for every answer

## Customisation

Edit the file to change tone, structure or language. Changes take effect on
the next question after the server or chat is restarted.

## Placeholders

- ` + "`{context}`" + ` - The excerpts retrieved from your document
- ` + "`{input}`" + ` - The question

Both placeholders must stay in the file. A prompt without them is ignored
and the built-in prompt is used instead.

To restore the default, delete answer.txt; it is recreated on next start.
`

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("create README: %w", err)
	}
	return nil
}
