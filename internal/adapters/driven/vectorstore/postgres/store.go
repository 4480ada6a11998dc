// Package postgres provides a VectorStore backed by PostgreSQL with the pgvector extension.
//
// Indexes are rows in a registry table; their vectors share one table keyed
// by (index_name, id). Queries rank rows with the pgvector distance operator
// matching the index metric.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS pdfqa_indexes (
    name       TEXT PRIMARY KEY,
    dimension  INTEGER NOT NULL,
    metric     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pdfqa_vectors (
    index_name TEXT NOT NULL REFERENCES pdfqa_indexes(name) ON DELETE CASCADE,
    id         TEXT NOT NULL,
    content    TEXT NOT NULL,
    metadata   JSONB NOT NULL DEFAULT '{}',
    embedding  vector NOT NULL,
    PRIMARY KEY (index_name, id)
);
`

// Config holds PostgreSQL connection configuration.
type Config struct {
	// URL is a postgres:// connection string.
	URL string

	// MaxConns caps the pool size (default: pgxpool default).
	MaxConns int32
}

// Store manages pgvector-backed indexes.
type Store struct {
	pool *pgxpool.Pool

	mu       sync.Mutex
	migrated bool
}

// NewStore creates a pool for the configured database.
// Connections and the schema are established on first use.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgres: URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// ensureSchema creates the extension and tables once per store.
// A failed attempt is retried on the next call.
func (s *Store) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.migrated {
		return nil
	}
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return wrapError("create schema", err)
	}
	s.migrated = true
	return nil
}

// ListIndexes returns the registered index names in creation order.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT name FROM pdfqa_indexes ORDER BY created_at, name`)
	if err != nil {
		return nil, wrapError("list indexes", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapError("list indexes", err)
	}
	return names, nil
}

// HasIndex reports whether an index is registered.
func (s *Store) HasIndex(ctx context.Context, name string) (bool, error) {
	_, err := s.DescribeIndex(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DescribeIndex returns the registry entry for an index.
// Tables are created synchronously, so a registered index is always ready.
func (s *Store) DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	desc := &domain.IndexDescription{Name: name, Ready: true, State: "Ready"}
	err := s.pool.QueryRow(ctx,
		`SELECT dimension, metric FROM pdfqa_indexes WHERE name = $1`, name,
	).Scan(&desc.Dimension, &desc.Metric)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("postgres: index %s: %w", name, domain.ErrNotFound)
		}
		return nil, wrapError("describe index", err)
	}
	return desc, nil
}

// CreateIndex registers a new index.
func (s *Store) CreateIndex(ctx context.Context, spec domain.IndexSpec) error {
	if _, err := distanceOperator(spec.Metric); err != nil {
		return err
	}
	if spec.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	metric := spec.Metric
	if metric == "" {
		metric = domain.DefaultMetric
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pdfqa_indexes (name, dimension, metric) VALUES ($1, $2, $3)`,
		spec.Name, spec.Dimension, strings.ToLower(metric))
	if err != nil {
		return wrapError("create index "+spec.Name, err)
	}

	logger.Debug("postgres: created index %s (dim=%d, metric=%s)", spec.Name, spec.Dimension, metric)
	return nil
}

// DeleteIndex removes an index and, by cascade, its vectors.
// Deleting a missing index is not an error.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM pdfqa_indexes WHERE name = $1`, name); err != nil {
		return wrapError("delete index "+name, err)
	}
	return nil
}

// Index opens a handle on a registered index.
func (s *Store) Index(ctx context.Context, name string) (driven.IndexHandle, error) {
	desc, err := s.DescribeIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	op, err := distanceOperator(desc.Metric)
	if err != nil {
		return nil, err
	}
	return &Index{
		pool:      s.pool,
		name:      name,
		dimension: desc.Dimension,
		metric:    desc.Metric,
		operator:  op,
	}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// distanceOperator maps index metrics to pgvector operators.
func distanceOperator(metric string) (string, error) {
	switch strings.ToLower(metric) {
	case "", "cosine":
		return "<=>", nil
	case "euclidean":
		return "<->", nil
	case "dotproduct":
		return "<#>", nil
	default:
		return "", fmt.Errorf("%w: unsupported metric %q", domain.ErrInvalidInput, metric)
	}
}

// wrapError tags connection failures so callers treat them as transient.
func wrapError(op string, err error) error {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrVectorStoreUnavailable, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
