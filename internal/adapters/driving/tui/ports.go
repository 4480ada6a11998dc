// Package tui provides an interactive terminal user interface for pdfqa.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/pdfqa/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the TUI.
type Ports struct {
	// Session holds the active document and its chat history.
	Session driving.SessionService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(session driving.SessionService) *Ports {
	return &Ports{Session: session}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Session == nil {
		return ErrMissingSessionService
	}
	return nil
}
