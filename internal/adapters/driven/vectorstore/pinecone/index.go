package pinecone

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.IndexHandle = (*Index)(nil)

// ContentKey is the metadata key holding chunk text.
const ContentKey = "text"

// UpsertBatchSize is the number of vectors sent per upsert request.
const UpsertBatchSize = 100

// Index is a data-plane handle on one Pinecone index.
type Index struct {
	name    string
	conn    dataPlane
	limiter *RateLimiter
}

// Name returns the index name.
func (i *Index) Name() string {
	return i.name
}

// Stats returns the vector count and dimension.
func (i *Index) Stats(ctx context.Context) (*domain.IndexStats, error) {
	if err := i.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := i.conn.DescribeIndexStats(ctx)
	if err != nil {
		return nil, i.fail("stats "+i.name, err)
	}

	stats := &domain.IndexStats{TotalVectorCount: int64(resp.TotalVectorCount)}
	if resp.Dimension != nil {
		stats.Dimension = int(*resp.Dimension)
	}
	return stats, nil
}

// Upsert writes records in batches. Chunk text is stored under ContentKey.
func (i *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	for start := 0; start < len(records); start += UpsertBatchSize {
		end := min(start+UpsertBatchSize, len(records))

		batch := make([]*pinecone.Vector, 0, end-start)
		for _, r := range records[start:end] {
			metadata, err := toMetadata(r.Metadata, r.Content)
			if err != nil {
				return fmt.Errorf("upsert %s: record %s: %w", i.name, r.ID, err)
			}
			values := r.Values
			batch = append(batch, &pinecone.Vector{Id: r.ID, Values: &values, Metadata: metadata})
		}

		if err := i.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := i.conn.UpsertVectors(ctx, batch); err != nil {
			return i.fail(fmt.Sprintf("upsert %s (records %d-%d)", i.name, start, end-1), err)
		}
	}
	return nil
}

// Query returns the topK most similar records, best first.
func (i *Index) Query(ctx context.Context, values []float32, topK int) ([]domain.ScoredChunk, error) {
	if err := i.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := i.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          values,
		TopK:            uint32(max(topK, 0)), //nolint:gosec // bounded by caller
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, i.fail("query "+i.name, err)
	}

	results := make([]domain.ScoredChunk, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		var fields map[string]any
		if m.Vector.Metadata != nil {
			fields = m.Vector.Metadata.AsMap()
		}
		content, _ := fields[ContentKey].(string)
		metadata := make(map[string]any, len(fields))
		for k, v := range fields {
			if k != ContentKey {
				metadata[k] = v
			}
		}
		results = append(results, domain.ScoredChunk{
			ID:       m.Vector.Id,
			Score:    float64(m.Score),
			Content:  content,
			Metadata: metadata,
		})
	}
	return results, nil
}

// fail wraps a data-plane error and holds further requests after a 429.
func (i *Index) fail(op string, err error) error {
	werr := wrapError(op, err)
	if apiErr, ok := werr.(*APIError); ok && apiErr.StatusCode == http.StatusTooManyRequests {
		i.limiter.Pause(defaultRetryAfter)
	}
	return werr
}

// toMetadata builds the stored metadata: the record's fields plus its text.
func toMetadata(fields map[string]any, content string) (*pinecone.Metadata, error) {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = metadataValue(v)
	}
	out[ContentKey] = content

	metadata, err := structpb.NewStruct(out)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return metadata, nil
}

// metadataValue converts values structpb cannot encode directly.
func metadataValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64:
		return val
	case []string:
		list := make([]any, len(val))
		for i, s := range val {
			list[i] = s
		}
		return list
	case []any:
		list := make([]any, len(val))
		for i, item := range val {
			list[i] = metadataValue(item)
		}
		return list
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = metadataValue(item)
		}
		return m
	}
	return fmt.Sprint(v)
}
