// Package redis provides a VectorStore backed by Redis Stack (RediSearch).
//
// Each per-document index is a RediSearch index over hashes whose keys start
// with "{index}:". Vectors are stored as little-endian FLOAT32 blobs and
// searched with KNN queries.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Field names in each chunk hash.
const (
	fieldContent  = "content"
	fieldVector   = "vector"
	fieldMetadata = "metadata"
	fieldScore    = "score"
)

// metaKeyPrefix prefixes the hash recording each index's dimension and metric.
const metaKeyPrefix = "pdfqa:index:"

// Default HNSW parameters.
const (
	defaultEFConstruction = 200
	defaultM              = 16
)

// Config holds Redis connection configuration.
type Config struct {
	// URL is a redis:// or rediss:// connection string.
	URL string

	// PoolSize is the maximum number of socket connections (default: go-redis default).
	PoolSize int

	// DialTimeout bounds connection establishment (default: 5s).
	DialTimeout time.Duration
}

// Store manages RediSearch vector indexes.
type Store struct {
	client *goredis.Client
}

// NewStore creates a Redis store. The connection is established lazily.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis: URL is required")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	// Search replies are parsed in their RESP2 array form.
	opts.Protocol = 2
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	} else {
		opts.DialTimeout = 5 * time.Second
	}

	return &Store{client: goredis.NewClient(opts)}, nil
}

// ListIndexes returns the names of all RediSearch indexes.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	res, err := s.client.Do(ctx, "FT._LIST").Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list indexes: %w", err)
	}
	return toStrings(res), nil
}

// HasIndex reports whether an index with the given name exists.
func (s *Store) HasIndex(ctx context.Context, name string) (bool, error) {
	_, err := s.info(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DescribeIndex returns the state of an index.
// An index is ready once RediSearch has finished its background scan.
func (s *Store) DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error) {
	info, err := s.info(ctx, name)
	if err != nil {
		return nil, err
	}

	meta, err := s.client.HGetAll(ctx, metaKeyPrefix+name).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read index metadata: %w", err)
	}
	dim, _ := strconv.Atoi(meta["dimension"])

	state := "Ready"
	if !info.ready() {
		state = "Indexing"
	}
	return &domain.IndexDescription{
		Name:      name,
		Dimension: dim,
		Metric:    meta["metric"],
		Ready:     info.ready(),
		State:     state,
	}, nil
}

// CreateIndex creates an HNSW vector index over hashes prefixed with "{name}:".
func (s *Store) CreateIndex(ctx context.Context, spec domain.IndexSpec) error {
	distance, err := distanceMetric(spec.Metric)
	if err != nil {
		return err
	}

	_, err = s.client.Do(ctx, "FT.CREATE", spec.Name,
		"ON", "HASH",
		"PREFIX", "1", keyPrefix(spec.Name),
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(spec.Dimension),
		"DISTANCE_METRIC", distance,
		"EF_CONSTRUCTION", strconv.Itoa(defaultEFConstruction),
		"M", strconv.Itoa(defaultM),
		fieldContent, "TEXT",
	).Result()
	if err != nil {
		return fmt.Errorf("redis: create index %s: %w", spec.Name, err)
	}

	if err := s.client.HSet(ctx, metaKeyPrefix+spec.Name,
		"dimension", spec.Dimension,
		"metric", spec.Metric,
		"created_at", time.Now().Unix(),
	).Err(); err != nil {
		return fmt.Errorf("redis: record index metadata: %w", err)
	}

	logger.Debug("redis: created index %s (dim=%d, metric=%s)", spec.Name, spec.Dimension, spec.Metric)
	return nil
}

// DeleteIndex drops an index together with its documents.
// Deleting a missing index is not an error.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	if err := s.client.Do(ctx, "FT.DROPINDEX", name, "DD").Err(); err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("redis: drop index %s: %w", name, err)
	}
	if err := s.client.Del(ctx, metaKeyPrefix+name).Err(); err != nil {
		return fmt.Errorf("redis: delete index metadata: %w", err)
	}
	return nil
}

// Index opens a handle on an existing index.
func (s *Store) Index(ctx context.Context, name string) (driven.IndexHandle, error) {
	desc, err := s.DescribeIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Index{
		client:    s.client,
		name:      name,
		dimension: desc.Dimension,
		metric:    desc.Metric,
	}, nil
}

// Close closes the Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) info(ctx context.Context, name string) (indexInfo, error) {
	res, err := s.client.Do(ctx, "FT.INFO", name).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, fmt.Errorf("redis: index %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("redis: index info %s: %w", name, err)
	}
	return parseInfo(res), nil
}

// keyPrefix returns the hash key prefix covered by an index.
func keyPrefix(index string) string {
	return index + ":"
}

// distanceMetric maps index metrics to RediSearch distance names.
func distanceMetric(metric string) (string, error) {
	switch strings.ToLower(metric) {
	case "", "cosine":
		return "COSINE", nil
	case "euclidean":
		return "L2", nil
	case "dotproduct":
		return "IP", nil
	default:
		return "", fmt.Errorf("%w: unsupported metric %q", domain.ErrInvalidInput, metric)
	}
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index")
}

// indexInfo is the flattened FT.INFO reply.
type indexInfo map[string]any

// parseInfo turns an FT.INFO reply (alternating keys and values) into a map.
func parseInfo(res any) indexInfo {
	info := indexInfo{}
	values, ok := res.([]any)
	if !ok {
		if m, ok := res.(map[any]any); ok {
			for k, v := range m {
				if key, ok := k.(string); ok {
					info[key] = v
				}
			}
		}
		return info
	}
	for i := 0; i+1 < len(values); i += 2 {
		if key, ok := values[i].(string); ok {
			info[key] = values[i+1]
		}
	}
	return info
}

func (i indexInfo) number(key string) int64 {
	switch v := i[key].(type) {
	case int64:
		return v
	case string:
		n, _ := strconv.ParseFloat(v, 64)
		return int64(n)
	case float64:
		return int64(v)
	}
	return 0
}

// ready is true when no background indexing is in progress.
func (i indexInfo) ready() bool {
	return i.number("indexing") == 0
}

func toStrings(res any) []string {
	values, ok := res.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
