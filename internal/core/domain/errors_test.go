package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrTooLarge", ErrTooLarge},
		{"ErrNoDocument", ErrNoDocument},
		{"ErrNotProcessed", ErrNotProcessed},
		{"ErrNoContent", ErrNoContent},
		{"ErrNoChunks", ErrNoChunks},
		{"ErrIndexTimeout", ErrIndexTimeout},
		{"ErrRetrieval", ErrRetrieval},
		{"ErrGeneration", ErrGeneration},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrVectorStoreUnavailable", ErrVectorStoreUnavailable},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrToolMissing", ErrToolMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestServiceError(t *testing.T) {
	cause := errors.New("pinecone: 503 service unavailable")
	err := &ServiceError{Op: "process", Attempts: 5, Err: cause}

	assert.Equal(t, "process: failed after 5 attempts: pinecone: 503 service unavailable", err.Error())
	assert.True(t, errors.Is(err, cause))

	var se *ServiceError
	wrapped := fmt.Errorf("pipeline: %w", err)
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, 5, se.Attempts)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"pinecone keyword", errors.New("Pinecone returned 500"), true},
		{"network keyword", errors.New("network is unreachable"), true},
		{"timeout keyword", errors.New("i/o timeout"), true},
		{"connection keyword", errors.New("connection reset by peer"), true},
		{"internal server keyword", errors.New("Internal Server Error"), true},
		{"index timeout sentinel", fmt.Errorf("create: %w", ErrIndexTimeout), true},
		{"rate limited sentinel", ErrRateLimited, true},
		{"embedding unavailable", fmt.Errorf("%w: boom", ErrEmbeddingUnavailable), true},
		{"plain input error", ErrInvalidInput, false},
		{"unrelated message", errors.New("bad page tree"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"invalid input", fmt.Errorf("ask: %w", ErrInvalidInput), KindInput},
		{"no document", ErrNoDocument, KindInput},
		{"not processed", ErrNotProcessed, KindInput},
		{"not found", fmt.Errorf("file: %w", ErrNotFound), KindNotFound},
		{"too large", ErrTooLarge, KindTooLarge},
		{"transient", errors.New("connection refused"), KindTransient},
		{"service error wrapping transient", &ServiceError{Op: "process", Attempts: 5, Err: errors.New("timeout")}, KindTransient},
		{"unknown", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "input", KindInput.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "too_large", KindTooLarge.String())
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "internal", KindInternal.String())
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrInvalidInput))
	assert.False(t, IsRetryable(fmt.Errorf("load: %w", ErrNotFound)))
	assert.False(t, IsRetryable(fmt.Errorf("load: %w", ErrNoContent)))
	assert.False(t, IsRetryable(ErrNoChunks))
	assert.False(t, IsRetryable(fmt.Errorf("load document: %w", fmt.Errorf("%w: pdftotext", ErrToolMissing))))
	assert.True(t, IsRetryable(errors.New("upsert: 429 too many requests")))
	assert.True(t, IsRetryable(ErrIndexTimeout))
}
