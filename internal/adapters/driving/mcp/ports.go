package mcp

import (
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Registry lists generation and embedding providers.
	Registry driving.ProviderRegistry

	// Assistant builds retrievers and answers questions.
	Assistant driving.AssistantService

	// Credentials reports which providers have credentials in the session.
	Credentials driving.CredentialService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Registry == nil {
		return ErrMissingRegistry
	}
	if p.Assistant == nil {
		return ErrMissingAssistant
	}
	// Credentials is optional; without it every provider reports unconfigured.
	return nil
}
