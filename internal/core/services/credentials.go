package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure CredentialStore implements the interface.
var _ driving.CredentialService = (*CredentialStore)(nil)

// SchemaSource resolves the credential fields a provider id accepts.
type SchemaSource interface {
	CredentialSchema(ctx context.Context, providerID string) ([]domain.CredentialField, error)
}

// CredentialSource is the read side of a session's credentials, as used by
// the handle factories.
type CredentialSource interface {
	Get(providerID string) (domain.CredentialFields, bool)
	Fingerprint(providerID string) (string, bool)
}

// CredentialStore holds one session's provider credentials in memory.
// Fingerprints are keyed by a per-store random salt, so equal credentials
// in two sessions never produce the same fingerprint.
type CredentialStore struct {
	schemas SchemaSource
	salt    []byte

	mu    sync.RWMutex
	creds map[string]domain.CredentialFields
}

// NewCredentialStore creates an empty store validating against schemas.
func NewCredentialStore(schemas SchemaSource) *CredentialStore {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("credentials: read salt: %v", err))
	}
	return &CredentialStore{
		schemas: schemas,
		salt:    salt,
		creds:   make(map[string]domain.CredentialFields),
	}
}

// Set validates fields against the provider's schema and stores a copy.
// Fields outside the schema are rejected.
func (s *CredentialStore) Set(ctx context.Context, providerID string, fields domain.CredentialFields) error {
	schema, err := s.schemas.CredentialSchema(ctx, providerID)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(schema))
	for _, f := range schema {
		known[f.Name] = true
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !known[name] {
			return domain.NewOpError(domain.ErrValidation, "set credentials", providerID, "",
				fmt.Errorf("unknown field %q", name))
		}
	}
	if err := domain.ValidateCredentials(providerID, schema, fields); err != nil {
		return err
	}

	stored := make(domain.CredentialFields, len(fields))
	for k, v := range fields {
		if v = strings.TrimSpace(v); v != "" {
			stored[k] = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[providerID] = stored
	return nil
}

// Get returns a copy of the provider's fields.
func (s *CredentialStore) Get(providerID string) (domain.CredentialFields, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.creds[providerID]
	if !ok {
		return nil, false
	}
	return fields.Clone(), true
}

// Has reports whether credentials are set for the provider.
func (s *CredentialStore) Has(providerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.creds[providerID]
	return ok
}

// Clear removes one provider's credentials.
func (s *CredentialStore) Clear(providerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, providerID)
}

// ClearAll removes every credential in the session.
func (s *CredentialStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = make(map[string]domain.CredentialFields)
}

// ConfiguredProviders lists provider ids with credentials, sorted.
func (s *CredentialStore) ConfiguredProviders() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.creds))
	for id := range s.creds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fingerprint returns the salted fingerprint of a provider's credentials.
// A provider with no credentials set still has a fingerprint, that of the
// empty set, so providers without required fields can be cached.
func (s *CredentialStore) Fingerprint(providerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.creds[providerID]
	return fields.Fingerprint(s.salt), ok
}

// Export returns every provider's credentials with secret values masked.
func (s *CredentialStore) Export(ctx context.Context) map[string]domain.CredentialFields {
	s.mu.RLock()
	snapshot := make(map[string]domain.CredentialFields, len(s.creds))
	for id, fields := range s.creds {
		snapshot[id] = fields.Clone()
	}
	s.mu.RUnlock()

	out := make(map[string]domain.CredentialFields, len(snapshot))
	for id, fields := range snapshot {
		// An unknown schema masks every field.
		schema, _ := s.schemas.CredentialSchema(ctx, id)
		out[id] = fields.Redacted(schema)
	}
	return out
}

// LoadFromEnv fills credentials for the given providers from the
// environment variables named in their schemas. Providers whose variables
// are unset, or whose values fail validation, are skipped. It returns the
// ids that were loaded.
func (s *CredentialStore) LoadFromEnv(ctx context.Context, providerIDs []string, lookup func(string) (string, bool)) []string {
	var loaded []string
	for _, id := range providerIDs {
		schema, err := s.schemas.CredentialSchema(ctx, id)
		if err != nil {
			continue
		}
		fields := make(domain.CredentialFields)
		for _, f := range schema {
			if f.Env == "" {
				continue
			}
			if v, ok := lookup(f.Env); ok && strings.TrimSpace(v) != "" {
				fields[f.Name] = v
			}
		}
		if len(fields) == 0 {
			continue
		}
		if err := s.Set(ctx, id, fields); err != nil {
			logger.Debug("credentials for %s not loaded from environment: %v", id, err)
			continue
		}
		loaded = append(loaded, id)
	}
	return loaded
}
