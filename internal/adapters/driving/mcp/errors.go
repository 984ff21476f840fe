// Package mcp provides an MCP (Model Context Protocol) server adapter for docqa.
// It lets AI assistants list providers, build retrievers over local
// documents and ask grounded questions against them.
package mcp

import "errors"

var (
	// ErrMissingRegistry is returned when the provider registry is not provided.
	ErrMissingRegistry = errors.New("mcp: provider registry is required")

	// ErrMissingAssistant is returned when the assistant service is not provided.
	ErrMissingAssistant = errors.New("mcp: assistant service is required")
)
