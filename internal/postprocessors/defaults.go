package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
	"github.com/custodia-labs/pdfqa/internal/postprocessors/chunker"
	"github.com/custodia-labs/pdfqa/internal/postprocessors/sanitizer"
)

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("sanitizer", buildSanitizer)
}

// NewDefaultPipeline returns the chunker followed by the sanitizer.
func NewDefaultPipeline() *Pipeline {
	r := NewRegistry()
	RegisterDefaults(r)
	p, err := r.BuildPipeline(StagesFromConfig(domain.DefaultPipelineConfig()))
	if err != nil {
		// Built-in stages always resolve.
		panic(fmt.Sprintf("default pipeline: %v", err))
	}
	return p
}

// buildChunker creates a chunker from stage settings.
// Supported keys:
//   - chunk_size (int): characters per chunk (default: 1000)
//   - overlap (int): overlapping characters between chunks (default: 200)
//   - separators ([]string): split points tried in order
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := intFromConfig(cfg, "chunk_size"); ok {
		if size <= 0 {
			return nil, fmt.Errorf("chunk_size must be positive, got %d", size)
		}
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := intFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	if seps, ok := cfg["separators"].([]string); ok {
		opts = append(opts, chunker.WithSeparators(seps...))
	}

	return chunker.New(opts...), nil
}

func buildSanitizer(_ map[string]any) (driven.PostProcessor, error) {
	return sanitizer.New(), nil
}

// intFromConfig extracts an int from settings decoded from TOML or JSON.
func intFromConfig(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
