package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.IndexHandle = (*Index)(nil)

// Index is a handle on one RediSearch vector index.
type Index struct {
	client    *goredis.Client
	name      string
	dimension int
	metric    string
}

// Name returns the index name.
func (i *Index) Name() string {
	return i.name
}

// Stats returns the number of indexed documents and the vector dimension.
func (i *Index) Stats(ctx context.Context) (*domain.IndexStats, error) {
	res, err := i.client.Do(ctx, "FT.INFO", i.name).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: stats %s: %w", i.name, err)
	}
	return &domain.IndexStats{
		TotalVectorCount: parseInfo(res).number("num_docs"),
		Dimension:        i.dimension,
	}, nil
}

// Upsert writes one hash per record in a single pipeline.
func (i *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := i.client.Pipeline()
	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("redis: encode metadata for %s: %w", r.ID, err)
		}
		pipe.HSet(ctx, keyPrefix(i.name)+r.ID,
			fieldContent, r.Content,
			fieldVector, encodeVector(r.Values),
			fieldMetadata, string(metadata),
		)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: upsert %s: %w", i.name, err)
	}
	return nil
}

// Query runs a KNN search and returns the topK closest records, best first.
func (i *Index) Query(ctx context.Context, values []float32, topK int) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		topK = 1
	}

	query := fmt.Sprintf("*=>[KNN %d @%s $vec AS %s]", topK, fieldVector, fieldScore)
	res, err := i.client.Do(ctx, "FT.SEARCH", i.name, query,
		"PARAMS", "2", "vec", encodeVector(values),
		"SORTBY", fieldScore,
		"RETURN", "3", fieldContent, fieldMetadata, fieldScore,
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: query %s: %w", i.name, err)
	}

	return parseSearchResults(res, keyPrefix(i.name), i.metric)
}

// encodeVector packs a vector as little-endian FLOAT32 bytes.
func encodeVector(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for n, v := range values {
		binary.LittleEndian.PutUint32(buf[4*n:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks little-endian FLOAT32 bytes.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("redis: vector blob length %d is not a multiple of 4", len(buf))
	}
	values := make([]float32, len(buf)/4)
	for n := range values {
		values[n] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*n:]))
	}
	return values, nil
}

// similarity converts a RediSearch distance into a higher-is-better score.
func similarity(distance float64, metric string) float64 {
	if strings.EqualFold(metric, "euclidean") {
		return 1 / (1 + distance)
	}
	// COSINE and IP distances are both 1 - similarity.
	return 1 - distance
}

// parseSearchResults reads an FT.SEARCH reply: the total count followed by
// alternating keys and field lists.
func parseSearchResults(res any, prefix, metric string) ([]domain.ScoredChunk, error) {
	values, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("redis: unexpected search reply %T", res)
	}

	results := make([]domain.ScoredChunk, 0, len(values)/2)
	for n := 1; n+1 < len(values); n += 2 {
		key, ok := values[n].(string)
		if !ok {
			continue
		}
		fields, ok := values[n+1].([]any)
		if !ok {
			continue
		}

		chunk := domain.ScoredChunk{ID: strings.TrimPrefix(key, prefix), Metadata: map[string]any{}}
		for f := 0; f+1 < len(fields); f += 2 {
			name, _ := fields[f].(string)
			value, _ := fields[f+1].(string)
			switch name {
			case fieldContent:
				chunk.Content = value
			case fieldMetadata:
				if err := json.Unmarshal([]byte(value), &chunk.Metadata); err != nil {
					return nil, fmt.Errorf("redis: decode metadata for %s: %w", key, err)
				}
			case fieldScore:
				distance, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("redis: parse score for %s: %w", key, err)
				}
				chunk.Score = similarity(distance, metric)
			}
		}
		results = append(results, chunk)
	}
	return results, nil
}
