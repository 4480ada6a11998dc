package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// ProcessInput is the input schema for the process_pdf tool.
type ProcessInput struct {
	Path string `json:"path,omitempty" jsonschema:"path of a PDF on disk; omit to process the active document"`
}

// ProcessOutput is the output schema for the process_pdf tool.
type ProcessOutput struct {
	Hash       string `json:"pdf_hash"`
	Name       string `json:"pdf_name"`
	IndexName  string `json:"index_name,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	IsExisting bool   `json:"is_existing"`
	Message    string `json:"message"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the active document"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer       string          `json:"answer"`
	ResponseTime float64         `json:"response_time"`
	Sources      []domain.Source `json:"sources"`
}

// HistoryInput is the input schema for the chat_history tool.
type HistoryInput struct{}

// HistoryOutput is the output schema for the chat_history tool.
type HistoryOutput struct {
	Entries []domain.ChatEntry `json:"entries"`
	Count   int                `json:"count"`
}

// ResetInput is the input schema for the reset tool.
type ResetInput struct{}

// ResetOutput is the output schema for the reset tool.
type ResetOutput struct {
	Message string `json:"message"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "process_pdf",
		Description: "Index a PDF so questions can be asked about it",
	}, s.handleProcess)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using the processed PDF as context",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chat_history",
		Description: "List questions and answers about the active PDF",
	}, s.handleHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reset",
		Description: "Forget the active PDF and clear the chat history",
	}, s.handleReset)
}

// handleProcess opens input.Path when given and indexes the active document.
func (s *Server) handleProcess(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProcessInput,
) (*mcp.CallToolResult, ProcessOutput, error) {
	if input.Path != "" {
		if _, err := s.ports.Session.Open(ctx, input.Path); err != nil {
			return nil, ProcessOutput{}, fmt.Errorf("opening %s: %w", input.Path, err)
		}
	}

	result, err := s.ports.Session.Process(ctx)
	if err != nil {
		return nil, ProcessOutput{}, err
	}

	output := ProcessOutput{
		Hash:       result.Hash.String(),
		IndexName:  result.IndexName,
		ChunkCount: result.ChunkCount,
		IsExisting: result.IsExisting,
	}
	if doc, err := s.ports.Session.Active(ctx); err == nil {
		output.Name = doc.Name
	}

	if result.IsExisting {
		output.Message = "PDF already processed; using the existing index"
	} else {
		output.Message = fmt.Sprintf("PDF processed: %d chunks indexed", result.ChunkCount)
	}
	return nil, output, nil
}

// handleAsk answers a question about the active document.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	entry, err := s.ports.Session.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	sources := entry.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return nil, AskOutput{
		Answer:       entry.Answer,
		ResponseTime: entry.ResponseTime,
		Sources:      sources,
	}, nil
}

// handleHistory returns the chat history for the active document.
func (s *Server) handleHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ HistoryInput,
) (*mcp.CallToolResult, HistoryOutput, error) {
	entries, err := s.ports.Session.History(ctx)
	if err != nil {
		return nil, HistoryOutput{}, err
	}
	return nil, HistoryOutput{Entries: entries, Count: len(entries)}, nil
}

// handleReset clears the session.
func (s *Server) handleReset(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ResetInput,
) (*mcp.CallToolResult, ResetOutput, error) {
	if err := s.ports.Session.Reset(ctx); err != nil {
		return nil, ResetOutput{}, err
	}
	return nil, ResetOutput{Message: "Session cleared"}, nil
}
