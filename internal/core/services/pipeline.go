package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Ensure PipelineService implements the interfaces.
var (
	_ driving.PipelineService = (*PipelineService)(nil)
	_ driven.PromptStoreAware = (*PipelineService)(nil)
)

// Answer engine defaults.
const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	// DefaultMaxSources is the number of excerpts returned with an answer.
	DefaultMaxSources = 3

	// DefaultExcerptLen is the number of characters kept per excerpt.
	DefaultExcerptLen = 200

	// embedBatchSize bounds the texts sent in one embedding request.
	embedBatchSize = 64

	// verifyQuery is embedded to check a freshly populated index answers queries.
	verifyQuery = "test"
)

// PipelineService indexes PDFs into per-document vector indexes and answers
// questions against them. One instance is shared by every driving adapter.
type PipelineService struct {
	indexes    *IndexManager
	loader     driven.DocumentLoader
	processors driven.PostProcessorPipeline
	embedder   driven.EmbeddingService
	llm        driven.LLMService
	backoff    *Backoff

	promptMu    sync.RWMutex
	promptStore driven.PromptStore

	populateAttempts int
	populateDelay    time.Duration
	now              func() time.Time
	indexTemplate    domain.IndexSpec

	mu    sync.RWMutex
	cache map[domain.DocumentHash]driven.IndexHandle

	flight singleflight.Group
}

// PipelineOption configures a PipelineService.
type PipelineOption func(*PipelineService)

// WithBackoff replaces the outer retry controller.
func WithBackoff(b *Backoff) PipelineOption {
	return func(s *PipelineService) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithPopulateRetry sets the embed-and-upsert attempts and the delay between them.
func WithPopulateRetry(attempts int, delay time.Duration) PipelineOption {
	return func(s *PipelineService) {
		if attempts > 0 {
			s.populateAttempts = attempts
		}
		if delay >= 0 {
			s.populateDelay = delay
		}
	}
}

// WithClock replaces the clock used to name indexes.
func WithClock(now func() time.Time) PipelineOption {
	return func(s *PipelineService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIndexPlacement sets the metric, cloud and region of new indexes.
// Empty values keep the defaults.
func WithIndexPlacement(metric, cloud, region string) PipelineOption {
	return func(s *PipelineService) {
		if metric != "" {
			s.indexTemplate.Metric = metric
		}
		if cloud != "" {
			s.indexTemplate.Cloud = cloud
		}
		if region != "" {
			s.indexTemplate.Region = region
		}
	}
}

// WithPrompts sets the prompt store used for the answer template.
func WithPrompts(store driven.PromptStore) PipelineOption {
	return func(s *PipelineService) {
		s.promptStore = store
	}
}

// NewPipelineService creates the pipeline service.
// llm may be nil, in which case Answer returns domain.ErrLLMUnavailable.
func NewPipelineService(
	indexes *IndexManager,
	loader driven.DocumentLoader,
	processors driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	opts ...PipelineOption,
) *PipelineService {
	s := &PipelineService{
		indexes:          indexes,
		loader:           loader,
		processors:       processors,
		embedder:         embedder,
		llm:              llm,
		backoff:          NewBackoff(),
		populateAttempts: DefaultPopulateAttempts,
		populateDelay:    DefaultPopulateDelay,
		now:              time.Now,
		indexTemplate:    domain.NewIndexSpec(""),
		cache:            make(map[domain.DocumentHash]driven.IndexHandle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPromptStore sets the prompt store for the answer template.
func (s *PipelineService) SetPromptStore(store driven.PromptStore) {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()
	s.promptStore = store
}

// Process indexes the document at req.Path, or reuses a populated index that
// already exists for its hash. Concurrent calls for the same hash share one run.
func (s *PipelineService) Process(ctx context.Context, req driving.ProcessRequest) (*domain.ProcessResult, error) {
	// 1. Validate the request
	if req.Path == "" {
		return nil, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	if _, err := os.Stat(req.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, req.Path)
		}
		return nil, fmt.Errorf("stat %s: %w", req.Path, err)
	}
	if req.Name == "" {
		req.Name = filepath.Base(req.Path)
	}
	if req.Hash == "" {
		hash, err := domain.HashFile(req.Path)
		if err != nil {
			return nil, err
		}
		req.Hash = hash
	} else if err := req.Hash.Validate(); err != nil {
		return nil, err
	}

	// 2. Share the run with concurrent callers for the same document. The run
	// outlives any single caller; each caller stops waiting on its own ctx.
	runCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(req.Hash.String(), func() (any, error) {
		return s.process(runCtx, req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.Debug("shared processing run for %s", req.Hash)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ProcessResult), nil
	}
}

func (s *PipelineService) process(ctx context.Context, req driving.ProcessRequest) (result *domain.ProcessResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("processing %s panicked: %v", req.Name, r)
			result, err = nil, fmt.Errorf("processing panicked: %v", r)
		}
	}()

	logger.Section("Processing " + req.Name)
	logger.Debug("path=%s hash=%s", req.Path, req.Hash)

	// 1. Reuse a populated index when one exists
	if s.indexes.Exists(ctx, req.Hash) {
		handle, err := s.indexes.LookupByHashPrefix(ctx, req.Hash)
		if err == nil {
			s.cacheHandle(req.Hash, handle)
			logger.Info("%s already processed, using index %s", req.Name, handle.Name())
			return &domain.ProcessResult{
				Hash:       req.Hash,
				IndexName:  handle.Name(),
				IsExisting: true,
			}, nil
		}
		logger.Warn("loading existing index for %s: %v; reprocessing", req.Hash, err)
	}

	// 2. Build a fresh index under the retry controller
	err = s.backoff.Do(ctx, "process "+req.Name, func(ctx context.Context, _ int) error {
		r, err := s.attempt(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		logger.Error("processing %s failed: %v", req.Name, err)
		return nil, err
	}
	logger.Info("processed %s into %s (%d chunks)", req.Name, result.IndexName, result.ChunkCount)
	return result, nil
}

// attempt runs one full load, chunk, create and populate sequence.
func (s *PipelineService) attempt(ctx context.Context, req driving.ProcessRequest) (result *domain.ProcessResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing panicked: %v", r)
		}
	}()

	indexName := domain.IndexName(req.Hash, s.now())

	// 1. Load the document
	doc, err := s.loader.Load(ctx, req.Path, req.Name)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	doc.Hash = req.Hash
	logger.Debug("loaded %d segments", len(doc.Segments))

	// 2. Split and sanitize
	chunks, err := s.processors.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("split document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, domain.ErrNoChunks
	}
	logger.Debug("created %d chunks", len(chunks))

	// 3. Replace any index left behind under the same name
	s.indexes.DeleteIfPresent(ctx, indexName)

	// 4. Create the index and wait for it
	spec := s.indexTemplate
	spec.Name = indexName
	if dims := s.embedder.Dimensions(); dims > 0 {
		spec.Dimension = dims
	}
	if err := s.indexes.CreateAndAwaitReady(ctx, spec); err != nil {
		return nil, err
	}
	handle, err := s.indexes.Open(ctx, indexName)
	if err != nil {
		return nil, err
	}

	// 5. Embed, upsert and verify
	err = s.backoff.Fixed(ctx, "populate "+indexName, s.populateAttempts, s.populateDelay, func(ctx context.Context) error {
		return s.populate(ctx, handle, chunks)
	})
	if err != nil {
		return nil, err
	}

	// 6. Cache the ready handle
	s.cacheHandle(req.Hash, handle)

	return &domain.ProcessResult{
		Hash:       req.Hash,
		IndexName:  indexName,
		ChunkCount: len(chunks),
	}, nil
}

// populate embeds chunks, writes them and checks the index answers a query.
func (s *PipelineService) populate(ctx context.Context, handle driven.IndexHandle, chunks []domain.Chunk) error {
	records := make([]domain.VectorRecord, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			texts = append(texts, chunks[i].Content)
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vectors), len(texts))
		}

		for i, vec := range vectors {
			c := chunks[start+i]
			records = append(records, domain.VectorRecord{
				ID:       c.ID,
				Values:   vec,
				Content:  c.Content,
				Metadata: c.Metadata,
			})
		}
	}

	if err := handle.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}

	sample, err := s.embedder.Embed(ctx, verifyQuery)
	if err != nil {
		return fmt.Errorf("verify index: %w", err)
	}
	if _, err := handle.Query(ctx, sample, 1); err != nil {
		return fmt.Errorf("verify index: %w", err)
	}
	return nil
}

// Answer retrieves the chunks most relevant to question from the document's
// index and asks the LLM to answer from them.
func (s *PipelineService) Answer(ctx context.Context, hash domain.DocumentHash, question string) (answer *domain.Answer, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("answering for %s panicked: %v", hash, r)
			answer, err = nil, fmt.Errorf("%w: answering panicked: %v", domain.ErrGeneration, r)
		}
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	// 1. Resolve the index
	handle, err := s.resolve(ctx, hash)
	if err != nil {
		return nil, err
	}
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	// 2. Retrieve relevant chunks
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", domain.ErrRetrieval, err)
	}
	hits, err := handle.Query(ctx, vector, DefaultTopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	logger.Debug("retrieved %d chunks from %s", len(hits), handle.Name())

	// 3. Generate
	texts := make([]string, len(hits))
	for i := range hits {
		texts[i] = hits[i].Content
	}
	prompt := domain.RenderPrompt(s.answerTemplate(), strings.Join(texts, "\n\n"), question)

	text, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	return &domain.Answer{
		Text:    text,
		Sources: buildSources(hits),
	}, nil
}

// resolve returns the cached handle for hash or finds its index.
func (s *PipelineService) resolve(ctx context.Context, hash domain.DocumentHash) (driven.IndexHandle, error) {
	s.mu.RLock()
	handle, ok := s.cache[hash]
	s.mu.RUnlock()
	if ok {
		return handle, nil
	}

	logger.Debug("index for %s not cached, searching", hash)
	handle, err := s.indexes.LookupByHashPrefix(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotProcessed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	s.cacheHandle(hash, handle)
	return handle, nil
}

func (s *PipelineService) answerTemplate() string {
	s.promptMu.RLock()
	store := s.promptStore
	s.promptMu.RUnlock()

	if store != nil {
		tmpl, err := store.Load(driven.PromptAnswer)
		if err == nil && tmpl != "" {
			return tmpl
		}
		if err != nil {
			logger.Warn("loading answer prompt: %v; using default", err)
		}
	}
	return domain.DefaultAnswerPrompt
}

// buildSources returns up to DefaultMaxSources excerpts.
func buildSources(hits []domain.ScoredChunk) []domain.Source {
	n := min(len(hits), DefaultMaxSources)
	sources := make([]domain.Source, 0, n)
	for _, hit := range hits[:n] {
		sources = append(sources, domain.Source{
			Content:  excerpt(hit.Content, DefaultExcerptLen),
			Metadata: hit.Metadata,
		})
	}
	return sources
}

// excerpt keeps the first n characters of s, marking the cut with an ellipsis.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// IsProcessed reports whether a populated index exists for hash.
func (s *PipelineService) IsProcessed(ctx context.Context, hash domain.DocumentHash) bool {
	return s.indexes.Exists(ctx, hash)
}

// Reset drops all cached index handles.
func (s *PipelineService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[domain.DocumentHash]driven.IndexHandle)
}

func (s *PipelineService) cacheHandle(hash domain.DocumentHash, handle driven.IndexHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[hash] = handle
}
