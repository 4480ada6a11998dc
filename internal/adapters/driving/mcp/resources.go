package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for pdfqa resources.
	uriScheme = "pdfqa://"

	documentURI = uriScheme + "document"
	historyURI  = uriScheme + "history"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         documentURI,
		Name:        "document",
		Description: "The active PDF and whether it has been processed",
		MIMEType:    "application/json",
	}, s.handleDocumentResource)

	s.server.AddResource(&mcp.Resource{
		URI:         historyURI,
		Name:        "history",
		Description: "Questions and answers about the active PDF",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)
}

// handleDocumentResource returns the active document.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	doc, err := s.ports.Session.Active(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoDocument) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("loading active document: %w", err)
	}
	return jsonResource(req.Params.URI, doc)
}

// handleHistoryResource returns the chat history of the active document.
func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	entries, err := s.ports.Session.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing chat history: %w", err)
	}
	return jsonResource(req.Params.URI, entries)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
