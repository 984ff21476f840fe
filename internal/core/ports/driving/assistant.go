package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// BuildRequest describes a retriever to build from source files.
type BuildRequest struct {
	SourcePaths       []string
	ChunkSize         int
	Overlap           int
	EmbeddingProvider string
	EmbeddingModel    string
}

// AskRequest is one grounded question against a retriever.
type AskRequest struct {
	RetrieverID string
	Question    string
	K           int
	Provider    string
	Model       string
	Temperature float64
}

// AssistantService is the UI-facing surface of one session: it builds
// retrievers from documents and answers questions against them.
type AssistantService interface {
	// BuildRetriever ingests the sources and returns a retriever handle.
	BuildRetriever(ctx context.Context, req BuildRequest) (string, error)

	// Ask answers a question from the retriever's passages.
	Ask(ctx context.Context, req AskRequest) (*domain.Answer, error)

	// Retriever returns a snapshot of a retriever's state.
	Retriever(id string) (domain.RetrieverInfo, error)

	// UpdateRetriever changes chunking or embedding parameters. A Ready
	// retriever becomes Stale until RebuildRetriever is called.
	UpdateRetriever(id string, params domain.RetrieverParams) error

	// RebuildRetriever re-ingests the retriever's sources with its current params.
	RebuildRetriever(ctx context.Context, id string) error

	// RemoveRetriever discards a retriever.
	RemoveRetriever(id string)
}
