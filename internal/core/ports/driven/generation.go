package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// GenerationConfig is everything a backend needs to build a client.
type GenerationConfig struct {
	// Provider is the registry descriptor being served.
	Provider domain.ProviderDescriptor

	// Model is the model id (or deployment name for custom-model providers).
	Model string

	// Credentials are the session's validated credential values.
	Credentials domain.CredentialFields

	// Params are the generation parameters bound to the client.
	Params domain.GenerationParams
}

// GenerationProvider is one text-generation backend, selected at runtime by
// the registry descriptor's driver name.
type GenerationProvider interface {
	// Name returns the driver name, e.g. "openai" or "anthropic".
	Name() string

	// Connect builds a client. It must not perform network I/O.
	Connect(cfg GenerationConfig) (GenerationClient, error)
}

// GenerationClient produces text from a prompt.
type GenerationClient interface {
	// Generate sends one prompt and returns the completion text.
	// Transport failures are returned as-is; callers classify them.
	Generate(ctx context.Context, prompt string) (string, error)

	// Close releases resources held by the client.
	Close() error
}
