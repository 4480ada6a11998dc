// Package mcp provides an MCP (Model Context Protocol) server adapter for pdfqa.
// It lets AI assistants process a PDF and ask questions about it.
package mcp

import "errors"

// ErrMissingSessionService is returned when the session service is not provided.
var ErrMissingSessionService = errors.New("mcp: session service is required")
