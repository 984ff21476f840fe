package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// CredentialService holds one session's provider credentials in memory.
// Nothing it holds is ever written to disk or to the registry store.
type CredentialService interface {
	// Set validates fields against the provider's schema and stores them.
	// Fails with domain.ErrValidation if a required field is missing or empty.
	Set(ctx context.Context, providerID string, fields domain.CredentialFields) error

	// Get returns a copy of the provider's fields, or false if none are set.
	Get(providerID string) (domain.CredentialFields, bool)

	// Has reports whether credentials are set for the provider.
	Has(providerID string) bool

	// Clear removes one provider's credentials.
	Clear(providerID string)

	// ClearAll removes every credential in the session.
	ClearAll()

	// ConfiguredProviders lists provider ids with credentials, sorted.
	ConfiguredProviders() []string

	// Export returns every provider's credentials with secret values masked.
	Export(ctx context.Context) map[string]domain.CredentialFields

	// LoadFromEnv fills credentials from the environment variables named in
	// the providers' schemas and returns the ids that were loaded.
	LoadFromEnv(ctx context.Context, providerIDs []string, lookup func(string) (string, bool)) []string
}
