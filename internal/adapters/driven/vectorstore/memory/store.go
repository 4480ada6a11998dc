// Package memory provides an in-process VectorStore using brute-force similarity search.
// Indexes are lost when the process exits; it serves development and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// Ensure Store and Index implement the interfaces.
var (
	_ driven.VectorStore = (*Store)(nil)
	_ driven.IndexHandle = (*Index)(nil)
)

// Store keeps indexes in memory.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*Index
	order   []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{indexes: make(map[string]*Index)}
}

// ListIndexes returns index names in creation order.
func (s *Store) ListIndexes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names, nil
}

// HasIndex reports whether an index exists.
func (s *Store) HasIndex(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// DescribeIndex returns the index description. In-memory indexes are always ready.
func (s *Store) DescribeIndex(_ context.Context, name string) (*domain.IndexDescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return nil, fmt.Errorf("memory: index %s: %w", name, domain.ErrNotFound)
	}
	return &domain.IndexDescription{
		Name:      name,
		Dimension: idx.spec.Dimension,
		Metric:    idx.spec.Metric,
		Ready:     true,
		State:     "Ready",
	}, nil
}

// CreateIndex adds an empty index.
func (s *Store) CreateIndex(_ context.Context, spec domain.IndexSpec) error {
	if spec.Name == "" || spec.Dimension <= 0 {
		return fmt.Errorf("%w: index needs a name and a positive dimension", domain.ErrInvalidInput)
	}
	switch strings.ToLower(spec.Metric) {
	case "":
		spec.Metric = domain.DefaultMetric
	case "cosine", "euclidean", "dotproduct":
		spec.Metric = strings.ToLower(spec.Metric)
	default:
		return fmt.Errorf("%w: unsupported metric %q", domain.ErrInvalidInput, spec.Metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[spec.Name]; ok {
		return fmt.Errorf("memory: index %s already exists", spec.Name)
	}
	s.indexes[spec.Name] = &Index{spec: spec, records: make(map[string]domain.VectorRecord)}
	s.order = append(s.order, spec.Name)
	return nil
}

// DeleteIndex removes an index. Deleting a missing index is not an error.
func (s *Store) DeleteIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; !ok {
		return nil
	}
	delete(s.indexes, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Index returns a handle on an existing index.
func (s *Store) Index(_ context.Context, name string) (driven.IndexHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return nil, fmt.Errorf("memory: index %s: %w", name, domain.ErrNotFound)
	}
	return idx, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Index is an in-memory index.
type Index struct {
	mu      sync.RWMutex
	spec    domain.IndexSpec
	records map[string]domain.VectorRecord
}

// Name returns the index name.
func (i *Index) Name() string {
	return i.spec.Name
}

// Stats returns the record count and dimension.
func (i *Index) Stats(_ context.Context) (*domain.IndexStats, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return &domain.IndexStats{
		TotalVectorCount: int64(len(i.records)),
		Dimension:        i.spec.Dimension,
	}, nil
}

// Upsert stores copies of the records, replacing any with the same ID.
func (i *Index) Upsert(_ context.Context, records []domain.VectorRecord) error {
	for _, r := range records {
		if len(r.Values) != i.spec.Dimension {
			return fmt.Errorf("%w: record %s has %d values, index %s expects %d",
				domain.ErrInvalidInput, r.ID, len(r.Values), i.spec.Name, i.spec.Dimension)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for _, r := range records {
		values := make([]float32, len(r.Values))
		copy(values, r.Values)
		r.Values = values
		r.Metadata = copyMetadata(r.Metadata)
		i.records[r.ID] = r
	}
	return nil
}

// Query scores every record and returns the topK best. Ties keep ID order.
func (i *Index) Query(_ context.Context, vector []float32, topK int) ([]domain.ScoredChunk, error) {
	if len(vector) != i.spec.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index %s expects %d",
			domain.ErrInvalidInput, len(vector), i.spec.Name, i.spec.Dimension)
	}
	if topK <= 0 {
		topK = 1
	}

	i.mu.RLock()
	results := make([]domain.ScoredChunk, 0, len(i.records))
	for _, r := range i.records {
		results = append(results, domain.ScoredChunk{
			ID:       r.ID,
			Score:    score(i.spec.Metric, r.Values, vector),
			Content:  r.Content,
			Metadata: copyMetadata(r.Metadata),
		})
	}
	i.mu.RUnlock()

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].ID < results[b].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// score returns a higher-is-better similarity for the metric.
func score(metric string, a, b []float32) float64 {
	var dot, normA, normB, dist float64
	for n := range a {
		x, y := float64(a[n]), float64(b[n])
		dot += x * y
		normA += x * x
		normB += y * y
		dist += (x - y) * (x - y)
	}

	switch metric {
	case "dotproduct":
		return dot
	case "euclidean":
		return 1 / (1 + math.Sqrt(dist))
	default:
		if normA == 0 || normB == 0 {
			return 0
		}
		return dot / (math.Sqrt(normA) * math.Sqrt(normB))
	}
}

func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
