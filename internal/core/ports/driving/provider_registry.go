package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// ProviderRegistry is the cached, refreshable catalog of providers.
type ProviderRegistry interface {
	// ListProviders returns all generation providers. If the backing store
	// is unavailable a built-in fallback set is returned instead.
	ListProviders(ctx context.Context) []domain.ProviderDescriptor

	// GetProvider returns one generation provider or domain.ErrUnknownProvider.
	GetProvider(ctx context.Context, id string) (domain.ProviderDescriptor, error)

	// ListEmbeddingProviders returns all embedding providers.
	ListEmbeddingProviders(ctx context.Context) []domain.EmbeddingProviderDescriptor

	// GetEmbeddingProvider returns one embedding provider or domain.ErrUnknownProvider.
	GetEmbeddingProvider(ctx context.Context, id string) (domain.EmbeddingProviderDescriptor, error)

	// Refresh reloads from the backing store, bypassing the cache.
	Refresh(ctx context.Context) error

	// UpsertProvider writes a generation provider record and refreshes.
	UpsertProvider(ctx context.Context, rec domain.ProviderRecord) error

	// UpsertEmbeddingProvider writes an embedding provider record and refreshes.
	UpsertEmbeddingProvider(ctx context.Context, rec domain.EmbeddingProviderRecord) error

	// DeleteProvider removes a generation provider record and refreshes.
	DeleteProvider(ctx context.Context, id string) error

	// DeleteEmbeddingProvider removes an embedding provider record and refreshes.
	DeleteEmbeddingProvider(ctx context.Context, id string) error
}
