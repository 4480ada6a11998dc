// Package pinecone provides a VectorStore backed by Pinecone serverless indexes.
//
// The control plane (list, describe, create, delete) is served by a single
// global endpoint; each index has its own data-plane host, discovered by
// describing the index and cached per name.
package pinecone

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultControlURL = "https://api.pinecone.io"
	DefaultTimeout    = 30 * time.Second
)

// sourceTag identifies this application in Pinecone request headers.
const sourceTag = "pdfqa"

// Config holds configuration for the Pinecone store.
type Config struct {
	// APIKey is the Pinecone API key (required).
	APIKey string

	// ControlURL is the control plane endpoint (default: https://api.pinecone.io).
	ControlURL string

	// Timeout is the per-request timeout for control-plane calls (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond and Burst pace all requests.
	RequestsPerSecond float64
	Burst             int
}

// controlPlane is the part of *pinecone.Client the store uses.
type controlPlane interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
	DeleteIndex(ctx context.Context, idxName string) error
}

// dataPlane is the part of *pinecone.IndexConnection an Index uses.
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// Store manages Pinecone indexes through the official Go client.
type Store struct {
	control controlPlane
	connect func(host string) (dataPlane, error)
	limiter *RateLimiter

	mu    sync.Mutex
	hosts map[string]string
	conns map[string]dataPlane
}

// NewStore creates a new Pinecone store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: API key is required")
	}
	if cfg.ControlURL == "" {
		cfg.ControlURL = DefaultControlURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	limiter := NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:    cfg.APIKey,
		Host:      strings.TrimRight(cfg.ControlURL, "/"),
		SourceTag: sourceTag,
		RestClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &pacedTransport{base: http.DefaultTransport, limiter: limiter},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: create client: %w", err)
	}

	s := newStore(client, limiter)
	s.connect = func(host string) (dataPlane, error) {
		return client.Index(pinecone.NewIndexConnParams{Host: host})
	}
	return s, nil
}

func newStore(control controlPlane, limiter *RateLimiter) *Store {
	return &Store{
		control: control,
		limiter: limiter,
		hosts:   make(map[string]string),
		conns:   make(map[string]dataPlane),
	}
}

// ListIndexes returns the names of all indexes in the project.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	indexes, err := s.control.ListIndexes(ctx)
	if err != nil {
		return nil, wrapError("list indexes", err)
	}

	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		if idx == nil {
			continue
		}
		names = append(names, idx.Name)
		if idx.Host != "" {
			s.setHost(idx.Name, idx.Host)
		}
	}
	return names, nil
}

// HasIndex reports whether an index with the given name exists.
func (s *Store) HasIndex(ctx context.Context, name string) (bool, error) {
	_, err := s.describe(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DescribeIndex returns the control-plane state of an index.
func (s *Store) DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error) {
	idx, err := s.describe(ctx, name)
	if err != nil {
		return nil, err
	}
	return describeModel(idx), nil
}

// CreateIndex issues creation of a serverless index.
// Returns as soon as Pinecone accepts the request; the index is not yet ready.
func (s *Store) CreateIndex(ctx context.Context, spec domain.IndexSpec) error {
	dimension := int32(spec.Dimension) //nolint:gosec // dimensions are small
	metric := pinecone.IndexMetric(spec.Metric)
	vectorType := "dense"

	idx, err := s.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:       spec.Name,
		Cloud:      pinecone.Cloud(spec.Cloud),
		Region:     spec.Region,
		Metric:     &metric,
		Dimension:  &dimension,
		VectorType: &vectorType,
	})
	if err != nil {
		return wrapError("create index "+spec.Name, err)
	}
	if idx != nil && idx.Host != "" {
		s.setHost(spec.Name, idx.Host)
	}
	logger.Debug("pinecone: create requested for %s (dim=%d, metric=%s)", spec.Name, spec.Dimension, spec.Metric)
	return nil
}

// DeleteIndex issues deletion of an index. Deleting a missing index is not an error.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	if err := s.control.DeleteIndex(ctx, name); err != nil {
		if werr := wrapError("delete index "+name, err); !IsNotFound(werr) {
			return werr
		}
	}

	s.mu.Lock()
	delete(s.hosts, name)
	conn := s.conns[name]
	delete(s.conns, name)
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Debug("pinecone: closing connection to %s: %v", name, err)
		}
	}
	return nil
}

// Index opens a data-plane handle on an existing index. Connections are
// reused per index until the index is deleted or the store is closed.
func (s *Store) Index(ctx context.Context, name string) (driven.IndexHandle, error) {
	s.mu.Lock()
	conn, ok := s.conns[name]
	host := s.hosts[name]
	s.mu.Unlock()
	if ok {
		return &Index{name: name, conn: conn, limiter: s.limiter}, nil
	}

	if host == "" {
		idx, err := s.describe(ctx, name)
		if err != nil {
			return nil, err
		}
		if idx.Host == "" {
			return nil, fmt.Errorf("pinecone: index %s has no host yet", name)
		}
		host = idx.Host
	}

	conn, err := s.connect(host)
	if err != nil {
		return nil, wrapError("connect to index "+name, err)
	}

	s.mu.Lock()
	if existing, ok := s.conns[name]; ok {
		s.mu.Unlock()
		conn.Close() //nolint:errcheck // lost the race, keep the existing one
		return &Index{name: name, conn: existing, limiter: s.limiter}, nil
	}
	s.conns[name] = conn
	s.mu.Unlock()

	return &Index{name: name, conn: conn, limiter: s.limiter}, nil
}

// Close closes every open index connection.
func (s *Store) Close() error {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[string]dataPlane)
	s.mu.Unlock()

	var firstErr error
	for name, conn := range conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("pinecone: closing connection to %s: %w", name, err)
		}
	}
	return firstErr
}

func (s *Store) describe(ctx context.Context, name string) (*pinecone.Index, error) {
	idx, err := s.control.DescribeIndex(ctx, name)
	if err != nil {
		return nil, wrapError("describe index "+name, err)
	}
	if idx == nil {
		return nil, fmt.Errorf("pinecone: describe index %s: %w", name, domain.ErrNotFound)
	}
	if idx.Host != "" {
		s.setHost(name, idx.Host)
	}
	return idx, nil
}

func (s *Store) setHost(name, host string) {
	s.mu.Lock()
	s.hosts[name] = host
	s.mu.Unlock()
}

// describeModel converts the SDK index model.
func describeModel(idx *pinecone.Index) *domain.IndexDescription {
	desc := &domain.IndexDescription{
		Name:   idx.Name,
		Metric: string(idx.Metric),
		Host:   idx.Host,
	}
	if idx.Dimension != nil {
		desc.Dimension = int(*idx.Dimension)
	}
	if idx.Status != nil {
		desc.Ready = idx.Status.Ready
		desc.State = string(idx.Status.State)
	}
	return desc
}
