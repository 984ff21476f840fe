package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// RegistryStore is the document store behind the provider registry.
// Records are keyed by provider id within two collections.
type RegistryStore interface {
	// ListProviders returns every generation provider record.
	ListProviders(ctx context.Context) ([]domain.ProviderRecord, error)

	// ListEmbeddingProviders returns every embedding provider record.
	ListEmbeddingProviders(ctx context.Context) ([]domain.EmbeddingProviderRecord, error)

	// UpsertProvider inserts or replaces a generation provider record.
	UpsertProvider(ctx context.Context, rec domain.ProviderRecord) error

	// UpsertEmbeddingProvider inserts or replaces an embedding provider record.
	UpsertEmbeddingProvider(ctx context.Context, rec domain.EmbeddingProviderRecord) error

	// DeleteProvider removes a generation provider record.
	// Returns domain.ErrNotFound if it does not exist.
	DeleteProvider(ctx context.Context, id string) error

	// DeleteEmbeddingProvider removes an embedding provider record.
	// Returns domain.ErrNotFound if it does not exist.
	DeleteEmbeddingProvider(ctx context.Context, id string) error

	// Close releases the store.
	Close() error
}
