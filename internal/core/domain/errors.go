package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTooLarge indicates an upload exceeds the accepted size.
	ErrTooLarge = errors.New("file too large")

	// ErrNoDocument indicates no document has been uploaded in the session.
	ErrNoDocument = errors.New("no document uploaded")

	// ErrNotProcessed indicates no populated index exists for a document hash.
	ErrNotProcessed = errors.New("document not processed or index not found")

	// Pipeline Errors.

	// ErrNoContent indicates the loader could not extract any text.
	ErrNoContent = errors.New("no content could be extracted from the document")

	// ErrNoChunks indicates splitting produced no chunks for the whole document.
	ErrNoChunks = errors.New("no text chunks could be created from the document content")

	// ErrIndexTimeout indicates an index did not become ready within the polling bound.
	ErrIndexTimeout = errors.New("index creation timeout")

	// ErrRetrieval indicates the similarity query against an index failed.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the generative model call failed.
	ErrGeneration = errors.New("failed to generate answer")

	// Service Errors.

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store is not configured or unreachable.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrToolMissing indicates a required external program is not installed.
	ErrToolMissing = errors.New("required tool not installed")
)

// ServiceError reports an operation that kept failing after bounded retries.
// It carries the last underlying error.
type ServiceError struct {
	// Op names the operation that failed.
	Op string

	// Attempts is the number of attempts made.
	Attempts int

	// Err is the last observed error.
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

// Unwrap returns the last observed error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ErrorKind groups errors by the action a caller should take.
type ErrorKind int

// Error kinds, ordered from caller mistakes to unexpected failures.
const (
	// KindInternal is an unexpected failure.
	KindInternal ErrorKind = iota

	// KindInput needs a different input or action from the caller.
	KindInput

	// KindNotFound refers to a missing resource.
	KindNotFound

	// KindTooLarge is an upload over the size limit.
	KindTooLarge

	// KindTransient is likely to succeed if retried later.
	KindTransient
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindTooLarge:
		return "too_large"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// transientKeywords are matched case-insensitively against error messages.
var transientKeywords = []string{
	"pinecone",
	"network",
	"timeout",
	"connection",
	"internal server",
}

// IsTransient reports whether err likely resolves by waiting and retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrIndexTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrLLMUnavailable) ||
		errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrVectorStoreUnavailable) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// Classify maps an error to the kind of response it deserves.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNoDocument),
		errors.Is(err, ErrNotProcessed):
		return KindInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTooLarge):
		return KindTooLarge
	case IsTransient(err):
		return KindTransient
	default:
		return KindInternal
	}
}

// IsRetryable reports whether another attempt could change the outcome.
// Caller mistakes and missing resources are never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case KindInput, KindNotFound, KindTooLarge:
		return false
	}
	return !errors.Is(err, ErrNoContent) &&
		!errors.Is(err, ErrNoChunks) &&
		!errors.Is(err, ErrToolMissing)
}
