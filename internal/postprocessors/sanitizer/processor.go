// Package sanitizer rebuilds chunk metadata into the flat, size-bounded shape
// accepted by vector index metadata fields.
package sanitizer

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

// Metadata keys written on every chunk.
const (
	KeyHash    = "pdf_hash"
	KeyName    = "pdf_name"
	KeyChunkID = "chunk_id"

	// KeyLayout holds the structural layout metadata produced by the loader.
	KeyLayout = "dl_meta"
)

// Size limits for coerced values.
const (
	MaxStringLen   = 500
	MaxJSONLen     = 800
	MaxFallbackLen = 300
	MaxListLen     = 10
	ChunkIDLen     = 8

	truncationMarker = "..."
)

// Processor sanitizes chunk metadata.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a sanitizer processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sanitizer"
}

// Process replaces the metadata of every chunk with its sanitized form.
func (p *Processor) Process(ctx context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Chunk, len(chunks))
	for i := range chunks {
		out[i] = chunks[i]
		out[i].Metadata = Sanitize(&chunks[i])
	}
	return out, nil
}

// Sanitize returns the canonical metadata for a chunk. The result always holds
// the document hash, document name and short chunk id; every other field is
// coerced into a scalar, a short string list or a bounded string.
// Sanitizing already-sanitized metadata returns the same mapping.
func Sanitize(chunk *domain.Chunk) map[string]any {
	clean := map[string]any{
		KeyHash:    chunk.DocumentHash.String(),
		KeyName:    chunk.DocumentName,
		KeyChunkID: shortID(chunk.ID),
	}

	for key, value := range chunk.Metadata {
		switch key {
		case KeyHash, KeyName, KeyChunkID:
			continue
		}
		clean[key] = coerceField(key, value)
	}
	return clean
}

// coerceField converts one value, falling back to "" if conversion panics.
func coerceField(key string, value any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("sanitizing metadata field %q: %v", key, r)
			out = ""
		}
	}()

	if key == KeyLayout {
		return encodeJSON(key, value)
	}
	return coerce(key, value)
}

func coerce(key string, value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		if isEncoded(v) {
			return v
		}
		if len([]rune(v)) > MaxStringLen {
			return truncate(v, MaxStringLen) + truncationMarker
		}
		return v
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	case []string:
		return capList(v)
	case []any:
		if list, ok := stringList(v); ok {
			return capList(list)
		}
	}

	switch reflect.Indirect(reflect.ValueOf(value)).Kind() {
	case reflect.Map, reflect.Struct:
		return encodeJSON(key, value)
	}

	if isEmpty(value) {
		return ""
	}
	return truncate(fmt.Sprint(value), MaxFallbackLen)
}

// encodeJSON serializes nested structures. Values that are already strings are
// kept as they are so that re-sanitizing does not double-encode them.
func encodeJSON(key string, value any) string {
	if s, ok := value.(string); ok {
		return truncate(s, MaxJSONLen)
	}
	if isEmpty(value) {
		return ""
	}
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("encoding metadata field %q: %v", key, err)
		return ""
	}
	return truncate(string(data), MaxJSONLen)
}

// looksLikeJSON reports whether s starts like an encoded object or array.
func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// isEncoded reports whether s is a nested value already encoded by
// encodeJSON: valid JSON within MaxJSONLen, or an encoding cut at exactly
// MaxJSONLen. Free text starting with a bracket is not.
func isEncoded(s string) bool {
	if !looksLikeJSON(s) {
		return false
	}
	n := len([]rune(s))
	if n == MaxJSONLen {
		return !json.Valid([]byte(s))
	}
	return n < MaxJSONLen && json.Valid([]byte(s))
}

func stringList(items []any) ([]string, bool) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func capList(items []string) []string {
	n := min(len(items), MaxListLen)
	out := make([]string, n)
	copy(out, items[:n])
	return out
}

// isEmpty reports whether value is nil or a zero-length collection.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func shortID(id string) string {
	return truncate(id, ChunkIDLen)
}
