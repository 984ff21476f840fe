package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for docqa resources.
	uriScheme = "docqa://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "providers",
		Name:        "providers",
		Description: "Generation and embedding providers in the registry",
		MIMEType:    "application/json",
	}, s.handleProvidersResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "retrievers/{retrieverId}",
		Name:        "retriever",
		Description: "State of a retriever built in this session",
		MIMEType:    "application/json",
	}, s.handleRetrieverResource)
}

// handleProvidersResource returns the provider catalog.
func (s *Server) handleProvidersResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	_, output, err := s.handleListProviders(ctx, nil, ListProvidersInput{})
	if err != nil {
		return nil, err
	}
	providers := output.Providers
	if providers == nil {
		providers = []ProviderOutput{}
	}
	return jsonResource(req.Params.URI, providers)
}

// handleRetrieverResource returns one retriever's state.
func (s *Server) handleRetrieverResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractRetrieverID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	info, err := s.ports.Assistant.Retriever(id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting retriever: %w", err)
	}
	return jsonResource(req.Params.URI, toRetrieverOutput(info))
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

// extractRetrieverID extracts the retriever ID from a URI like docqa://retrievers/{retrieverId}.
func extractRetrieverID(uri string) string {
	const prefix = uriScheme + "retrievers/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
