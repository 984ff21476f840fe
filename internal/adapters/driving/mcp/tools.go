package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Provider kinds accepted by the list_providers tool.
const (
	kindGeneration = "generation"
	kindEmbedding  = "embedding"
)

// ListProvidersInput is the input schema for the list_providers tool.
type ListProvidersInput struct {
	Kind string `json:"kind,omitempty" jsonschema:"generation or embedding; empty lists both"`
}

// ListProvidersOutput is the output schema for the list_providers tool.
type ListProvidersOutput struct {
	Providers []ProviderOutput `json:"providers"`
	Count     int              `json:"count"`
}

// ProviderOutput summarises one provider. Credential values are never
// included, only the field names a client must supply.
type ProviderOutput struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Kind             string   `json:"kind"`
	Models           []string `json:"models"`
	CredentialFields []string `json:"credential_fields,omitempty"`
	Configured       bool     `json:"configured"`
}

// BuildRetrieverInput is the input schema for the build_retriever tool.
type BuildRetrieverInput struct {
	Paths             []string `json:"paths" jsonschema:"files to ingest"`
	ChunkSize         int      `json:"chunk_size,omitempty" jsonschema:"characters per chunk (default 1000)"`
	Overlap           int      `json:"overlap,omitempty" jsonschema:"characters shared by consecutive chunks (default 200)"`
	EmbeddingProvider string   `json:"embedding_provider" jsonschema:"embedding provider id"`
	EmbeddingModel    string   `json:"embedding_model" jsonschema:"embedding model id"`
}

// RetrieverInput selects a retriever.
type RetrieverInput struct {
	RetrieverID string `json:"retriever_id" jsonschema:"retriever handle returned by build_retriever"`
}

// RetrieverOutput describes a retriever's state.
type RetrieverOutput struct {
	RetrieverID string   `json:"retriever_id"`
	State       string   `json:"state"`
	Chunks      int      `json:"chunks"`
	Sources     []string `json:"sources"`
	Signature   string   `json:"signature"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	RetrieverID string  `json:"retriever_id" jsonschema:"retriever handle returned by build_retriever"`
	Question    string  `json:"question" jsonschema:"the question to answer from the documents"`
	K           int     `json:"k,omitempty" jsonschema:"number of passages to retrieve (default 4)"`
	Provider    string  `json:"provider" jsonschema:"generation provider id"`
	Model       string  `json:"model" jsonschema:"generation model id"`
	Temperature float64 `json:"temperature,omitempty" jsonschema:"sampling temperature (default 0)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is one passage an answer was grounded on.
type SourceOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Index      int     `json:"index"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// Defaults applied when a tool input leaves a field at zero.
const (
	defaultChunkSize = 1000
	defaultOverlap   = 200
	defaultK         = 4
)

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_providers",
		Description: "List generation and embedding providers with their models",
	}, s.handleListProviders)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "build_retriever",
		Description: "Ingest local files into a new retriever and return its handle",
	}, s.handleBuildRetriever)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retriever_status",
		Description: "Show a retriever's state, sources and chunk count",
	}, s.handleRetrieverStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from a retriever's passages",
	}, s.handleAsk)
}

// handleListProviders handles the list_providers tool invocation.
func (s *Server) handleListProviders(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListProvidersInput,
) (*mcp.CallToolResult, ListProvidersOutput, error) {
	if input.Kind != "" && input.Kind != kindGeneration && input.Kind != kindEmbedding {
		return nil, ListProvidersOutput{}, fmt.Errorf("%w: kind must be %q or %q, got %q",
			domain.ErrConfiguration, kindGeneration, kindEmbedding, input.Kind)
	}

	var providers []ProviderOutput
	if input.Kind != kindEmbedding {
		for _, p := range s.ports.Registry.ListProviders(ctx) {
			providers = append(providers, ProviderOutput{
				ID:               p.ID,
				Name:             p.Name,
				Kind:             kindGeneration,
				Models:           p.Models,
				CredentialFields: fieldNames(p.CredentialFields),
				Configured:       s.configured(p.ID),
			})
		}
	}
	if input.Kind != kindGeneration {
		for _, p := range s.ports.Registry.ListEmbeddingProviders(ctx) {
			models := make([]string, len(p.Models))
			for i, m := range p.Models {
				models[i] = m.ID
			}
			providers = append(providers, ProviderOutput{
				ID:               p.ID,
				Name:             p.Name,
				Kind:             kindEmbedding,
				Models:           models,
				CredentialFields: fieldNames(p.CredentialFields),
				Configured:       s.configured(p.ID),
			})
		}
	}

	return nil, ListProvidersOutput{Providers: providers, Count: len(providers)}, nil
}

// handleBuildRetriever handles the build_retriever tool invocation.
func (s *Server) handleBuildRetriever(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildRetrieverInput,
) (*mcp.CallToolResult, RetrieverOutput, error) {
	chunkSize := input.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	overlap := input.Overlap
	if input.ChunkSize <= 0 && overlap == 0 {
		overlap = defaultOverlap
	}

	id, err := s.ports.Assistant.BuildRetriever(ctx, driving.BuildRequest{
		SourcePaths:       input.Paths,
		ChunkSize:         chunkSize,
		Overlap:           overlap,
		EmbeddingProvider: input.EmbeddingProvider,
		EmbeddingModel:    input.EmbeddingModel,
	})
	if err != nil {
		return nil, RetrieverOutput{}, err
	}
	return s.retrieverOutput(id)
}

// handleRetrieverStatus handles the retriever_status tool invocation.
func (s *Server) handleRetrieverStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input RetrieverInput,
) (*mcp.CallToolResult, RetrieverOutput, error) {
	return s.retrieverOutput(input.RetrieverID)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultK
	}

	answer, err := s.ports.Assistant.Ask(ctx, driving.AskRequest{
		RetrieverID: input.RetrieverID,
		Question:    input.Question,
		K:           k,
		Provider:    input.Provider,
		Model:       input.Model,
		Temperature: input.Temperature,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:  answer.Text,
		Sources: make([]SourceOutput, len(answer.Sources)),
	}
	for i, src := range answer.Sources {
		output.Sources[i] = SourceOutput{
			ChunkID:    src.Chunk.ID,
			DocumentID: src.Chunk.DocumentID,
			Index:      src.Chunk.Index,
			Score:      src.Score,
			Text:       src.Chunk.Text,
		}
	}
	return nil, output, nil
}

func (s *Server) retrieverOutput(id string) (*mcp.CallToolResult, RetrieverOutput, error) {
	info, err := s.ports.Assistant.Retriever(id)
	if err != nil {
		return nil, RetrieverOutput{}, err
	}
	return nil, toRetrieverOutput(info), nil
}

func (s *Server) configured(providerID string) bool {
	return s.ports.Credentials != nil && s.ports.Credentials.Has(providerID)
}

func toRetrieverOutput(info domain.RetrieverInfo) RetrieverOutput {
	sources := info.Sources
	if sources == nil {
		sources = []string{}
	}
	return RetrieverOutput{
		RetrieverID: info.ID,
		State:       info.State.String(),
		Chunks:      info.Chunks,
		Sources:     sources,
		Signature:   info.Signature.String(),
	}
}

func fieldNames(fields []domain.CredentialField) []string {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
