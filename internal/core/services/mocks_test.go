package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
)

// fakeClock advances only when something sleeps on it.
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func noJitter(time.Duration) time.Duration { return 0 }

// mockIndex is an index handle backed by a slice of records.
type mockIndex struct {
	mu             sync.Mutex
	name           string
	records        []domain.VectorRecord
	hits           []domain.ScoredChunk
	upsertFailures int
	upsertCalls    int
	queryErr       error
	queryCalls     int
	statsErr       error
}

func (m *mockIndex) Name() string { return m.name }

func (m *mockIndex) Stats(_ context.Context) (*domain.IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return &domain.IndexStats{TotalVectorCount: int64(len(m.records))}, nil
}

func (m *mockIndex) Upsert(_ context.Context, records []domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertFailures > 0 {
		m.upsertFailures--
		return errors.New("upsert: connection reset")
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *mockIndex) Query(_ context.Context, _ []float32, topK int) ([]domain.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.hits != nil {
		return m.hits[:min(topK, len(m.hits))], nil
	}
	var out []domain.ScoredChunk
	for _, r := range m.records {
		if len(out) == topK {
			break
		}
		out = append(out, domain.ScoredChunk{ID: r.ID, Score: 1, Content: r.Content, Metadata: r.Metadata})
	}
	return out, nil
}

// mockVectorStore simulates a managed service whose indexes become ready
// after a number of status checks.
type mockVectorStore struct {
	mu sync.Mutex

	indexes map[string]*mockIndex

	// readyAfter is the DescribeIndex call on which an index reports ready.
	readyAfter    int
	describeCalls map[string]int

	// deleteLag is how many HasIndex calls still see a deleted index.
	deleteLag int
	deleting  map[string]int

	listErr        error
	listPanic      string
	hasErr         error
	createErr      error
	createFailures int
	deleteErr      error
	openErr        error

	// afterCreate adjusts every newly created index.
	afterCreate func(idx *mockIndex)

	created []domain.IndexSpec
	deleted []string
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{
		indexes:       make(map[string]*mockIndex),
		readyAfter:    1,
		describeCalls: make(map[string]int),
		deleting:      make(map[string]int),
	}
}

// addIndex registers an index holding n records.
func (m *mockVectorStore) addIndex(name string, n int) *mockIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := &mockIndex{name: name}
	for i := 0; i < n; i++ {
		idx.records = append(idx.records, domain.VectorRecord{
			ID:      fmt.Sprintf("rec-%d", i),
			Content: fmt.Sprintf("content %d", i),
		})
	}
	m.indexes[name] = idx
	return idx
}

func (m *mockVectorStore) index(name string) *mockIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexes[name]
}

func (m *mockVectorStore) ListIndexes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listPanic != "" {
		panic(m.listPanic)
	}
	if m.listErr != nil {
		return nil, m.listErr
	}
	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *mockVectorStore) HasIndex(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasErr != nil {
		return false, m.hasErr
	}
	if remaining, ok := m.deleting[name]; ok {
		if remaining > 0 {
			m.deleting[name] = remaining - 1
			return true, nil
		}
		delete(m.deleting, name)
		return false, nil
	}
	_, ok := m.indexes[name]
	return ok, nil
}

func (m *mockVectorStore) DescribeIndex(_ context.Context, name string) (*domain.IndexDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[name]; !ok {
		return nil, domain.ErrNotFound
	}
	m.describeCalls[name]++
	return &domain.IndexDescription{
		Name:  name,
		Ready: m.describeCalls[name] >= m.readyAfter,
	}, nil
}

func (m *mockVectorStore) CreateIndex(_ context.Context, spec domain.IndexSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFailures > 0 {
		m.createFailures--
		return errors.New("network unreachable")
	}
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, spec)
	idx := &mockIndex{name: spec.Name}
	if m.afterCreate != nil {
		m.afterCreate(idx)
	}
	m.indexes[spec.Name] = idx
	return nil
}

func (m *mockVectorStore) DeleteIndex(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.indexes, name)
	m.deleted = append(m.deleted, name)
	m.deleting[name] = m.deleteLag
	return nil
}

func (m *mockVectorStore) Index(_ context.Context, name string) (driven.IndexHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	idx, ok := m.indexes[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return idx, nil
}

func (m *mockVectorStore) Close() error { return nil }

// mockLoader returns one segment per configured page.
type mockLoader struct {
	mu    sync.Mutex
	pages []string
	err   error
	calls int

	// started and release let a test hold a load in flight.
	started chan struct{}
	release chan struct{}
}

func (m *mockLoader) Load(_ context.Context, path, name string) (*domain.Document, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	doc := &domain.Document{Name: name, Path: path}
	for i, p := range m.pages {
		doc.Segments = append(doc.Segments, domain.Segment{
			Content:  p,
			Metadata: map[string]any{"page": i + 1},
		})
	}
	return doc, nil
}

func (m *mockLoader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockProcessors turns every segment into one chunk.
type mockProcessors struct {
	err error
}

func (m *mockProcessors) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	chunks := make([]domain.Chunk, 0, len(doc.Segments))
	for i, seg := range doc.Segments {
		chunks = append(chunks, domain.Chunk{
			ID:           fmt.Sprintf("chunk-%d", i),
			DocumentHash: doc.Hash,
			DocumentName: doc.Name,
			Content:      seg.Content,
			Position:     i,
			Metadata:     map[string]any{"pdf_hash": doc.Hash.String(), "page": seg.Metadata["page"]},
		})
	}
	return chunks, nil
}

type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	err        error
	embedCalls int
	batchCalls int
	texts      []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	m.texts = append(m.texts, text)
	if m.err != nil {
		return nil, m.err
	}
	return make([]float32, m.dims), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, m.dims)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

type mockLLM struct {
	mu       sync.Mutex
	answer   string
	err      error
	panicMsg string
	prompts  []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.prompts[name], nil
}

func (m *mockPromptStore) Reload() {}

// mockPipeline records the calls a session makes.
type mockPipeline struct {
	mu          sync.Mutex
	processReqs []driving.ProcessRequest
	processErr  error
	answer      *domain.Answer
	answerErr   error
	questions   []string
	resets      int

	// onAnswer runs inside Answer, e.g. to advance a clock.
	onAnswer func()
}

func (m *mockPipeline) Process(_ context.Context, req driving.ProcessRequest) (*domain.ProcessResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processReqs = append(m.processReqs, req)
	if m.processErr != nil {
		return nil, m.processErr
	}
	return &domain.ProcessResult{Hash: req.Hash, IndexName: "pdf-" + req.Hash.String() + "-1", ChunkCount: 3}, nil
}

func (m *mockPipeline) Answer(_ context.Context, _ domain.DocumentHash, question string) (*domain.Answer, error) {
	m.mu.Lock()
	m.questions = append(m.questions, question)
	m.mu.Unlock()
	if m.onAnswer != nil {
		m.onAnswer()
	}
	if m.answerErr != nil {
		return nil, m.answerErr
	}
	return m.answer, nil
}

func (m *mockPipeline) IsProcessed(_ context.Context, _ domain.DocumentHash) bool { return false }

func (m *mockPipeline) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

// writePDF writes content to a .pdf file in a temp dir and returns its path and hash.
func writePDF(t *testing.T, name, content string) (string, domain.DocumentHash) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, domain.ComputeHash([]byte(content))
}
