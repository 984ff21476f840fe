package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// EmbeddingConfig is everything a backend needs to build an embedding client.
type EmbeddingConfig struct {
	Provider    domain.EmbeddingProviderDescriptor
	Model       domain.EmbeddingModel
	Credentials domain.CredentialFields
}

// EmbeddingProvider is one embedding backend, selected by driver name.
type EmbeddingProvider interface {
	// Name returns the driver name.
	Name() string

	// Connect builds a client. It must not perform network I/O.
	Connect(cfg EmbeddingConfig) (EmbeddingClient, error)
}

// EmbeddingClient generates vector embeddings from text.
type EmbeddingClient interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one request.
	// Only called when the provider declares batch support.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases resources.
	Close() error
}
