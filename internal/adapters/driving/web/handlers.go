package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

const (
	msgTooLarge  = "File is too large. Please upload a PDF file smaller than 50MB."
	msgTransient = "AI service is temporarily experiencing issues. Please try again in a few minutes."
)

type errorResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	RetrySuggested bool   `json:"retry_suggested,omitempty"`
}

type uploadResponse struct {
	Success bool                `json:"success"`
	Hash    domain.DocumentHash `json:"pdf_hash"`
	Name    string              `json:"pdf_name"`
	Message string              `json:"message"`
}

type processResponse struct {
	Success    bool   `json:"success"`
	IsExisting bool   `json:"is_existing"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Message    string `json:"message"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Success      bool            `json:"success"`
	Answer       string          `json:"answer"`
	ResponseTime float64         `json:"response_time"`
	Sources      []domain.Source `json:"sources"`
}

type historyResponse struct {
	ChatHistory []domain.ChatEntry `json:"chat_history"`
}

type documentResponse struct {
	Success  bool                   `json:"success"`
	Document *domain.ActiveDocument `json:"document"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "Upload failed", domain.ErrTooLarge)
			return
		}
		writeError(w, "Upload failed", fmt.Errorf("%w: no file selected", domain.ErrInvalidInput))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		writeError(w, "Upload failed", fmt.Errorf("%w: no file selected", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	if header.Size > s.maxUpload {
		writeError(w, "Upload failed", domain.ErrTooLarge)
		return
	}

	doc, err := s.session.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, "Upload failed", err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Hash:    doc.Hash,
		Name:    doc.Name,
		Message: "File uploaded successfully",
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	result, err := s.session.Process(r.Context())
	if err != nil {
		writeError(w, "Processing failed", err)
		return
	}

	resp := processResponse{Success: true, IsExisting: result.IsExisting}
	if result.IsExisting {
		resp.Message = "PDF already processed. Loading existing embeddings..."
	} else {
		resp.ChunkCount = result.ChunkCount
		resp.Message = fmt.Sprintf("PDF processed successfully! Created %d document chunks.", result.ChunkCount)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Failed to process question", fmt.Errorf("%w: invalid request data", domain.ErrInvalidInput))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, "Failed to process question", fmt.Errorf("%w: please enter a question", domain.ErrInvalidInput))
		return
	}

	entry, err := s.session.Ask(r.Context(), req.Question)
	if err != nil {
		writeError(w, "Failed to process question", err)
		return
	}

	sources := entry.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		Success:      true,
		Answer:       entry.Answer,
		ResponseTime: entry.ResponseTime,
		Sources:      sources,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.session.History(r.Context())
	if err != nil {
		writeError(w, "Loading chat history failed", err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{ChatHistory: entries})
}

func (s *Server) handleViewPDF(w http.ResponseWriter, r *http.Request) {
	doc, err := s.session.Active(r.Context())
	if err != nil {
		http.Error(w, "PDF not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(doc.Path)
	if err != nil {
		http.Error(w, "PDF file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "PDF file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, doc.Name, info.ModTime(), f)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.session.Active(r.Context())
	if err != nil {
		writeError(w, "Loading document failed", err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Success: true, Document: doc})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearHistory(r.Context()); err != nil {
		writeError(w, "Clearing chat failed", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(r.Context()); err != nil {
		writeError(w, "Reset failed", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Session cleared successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "ok"})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch domain.Classify(err) {
	case domain.KindInput:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON failure. Internal errors are prefixed with
// action so the client sees which step failed.
func writeError(w http.ResponseWriter, action string, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	switch status {
	case http.StatusRequestEntityTooLarge:
		resp.Error = msgTooLarge
	case http.StatusServiceUnavailable:
		resp.Error = msgTransient
		resp.RetrySuggested = true
		logger.Warn("%s: %v", action, err)
	case http.StatusInternalServerError:
		resp.Error = action + ": " + err.Error()
		logger.Error("%s: %v", action, err)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("writing response: %v", err)
	}
}
