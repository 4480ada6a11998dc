package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// APIError represents a failed Pinecone call. Control-plane failures carry
// the HTTP status; data-plane gRPC failures are mapped to the nearest one.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinecone: %s: API error %d: %v", e.Op, e.StatusCode, e.Err)
}

// Unwrap returns the SDK error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets callers match API errors against domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case domain.ErrVectorStoreUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// IsNotFound checks if the error indicates the index does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// IsConflict checks if the error indicates the index already exists.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// wrapError tags an SDK error with its status. Context errors and errors
// without a status are returned as they are, annotated with op.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("pinecone: %s: %w", op, err)
	}

	var pcErr *pinecone.PineconeError
	if errors.As(err, &pcErr) && pcErr.Code != 0 {
		return &APIError{Op: op, StatusCode: pcErr.Code, Err: err}
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		return &APIError{Op: op, StatusCode: httpStatus(st.Code()), Err: err}
	}
	return fmt.Errorf("pinecone: %s: %w", op, err)
}

// httpStatus maps a gRPC code to the HTTP status with the same meaning.
func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
