package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:5000"

	// multipartMemory is the part of a multipart body kept in memory before
	// spilling to temporary files.
	multipartMemory = 10 << 20

	// multipartOverhead allows for form boundaries and headers on top of the file.
	multipartOverhead = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// ErrMissingSessionService is returned when the session service is not provided.
var ErrMissingSessionService = errors.New("web: session service is required")

// Server serves the JSON API.
type Server struct {
	session   driving.SessionService
	maxUpload int64
	mux       *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes sets the request body limit for uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// NewServer creates a server backed by session.
func NewServer(session driving.SessionService, opts ...Option) (*Server, error) {
	if session == nil {
		return nil, ErrMissingSessionService
	}

	s := &Server{
		session:   session,
		maxUpload: domain.DefaultMaxUploadBytes,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /process-pdf", s.handleProcess)
	s.mux.HandleFunc("POST /ask", s.handleAsk)
	s.mux.HandleFunc("GET /get-chat-history", s.handleHistory)
	s.mux.HandleFunc("GET /view-pdf", s.handleViewPDF)
	s.mux.HandleFunc("GET /document", s.handleDocument)
	s.mux.HandleFunc("POST /clear-chat", s.handleClearChat)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the HTTP handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("serving on http://%s", ln.Addr())
	err := httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
