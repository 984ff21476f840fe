package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure RegistryStore implements the interface.
var _ driven.RegistryStore = (*RegistryStore)(nil)

// RegistryStore is an in-memory implementation of driven.RegistryStore.
// Records are kept as JSON documents, the same shape the persistent
// stores hold, so callers never share slices with the store.
type RegistryStore struct {
	mu          sync.RWMutex
	providers   map[string][]byte
	embedding   map[string][]byte
	unavailable error
}

// NewRegistryStore creates a new in-memory registry store.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{
		providers: make(map[string][]byte),
		embedding: make(map[string][]byte),
	}
}

// SetUnavailable makes every call fail with err until it is reset with nil.
func (s *RegistryStore) SetUnavailable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = err
}

// ListProviders returns all generation provider records sorted by id.
func (s *RegistryStore) ListProviders(_ context.Context) ([]domain.ProviderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable != nil {
		return nil, s.unavailable
	}
	return decodeAll[domain.ProviderRecord](s.providers)
}

// ListEmbeddingProviders returns all embedding provider records sorted by id.
func (s *RegistryStore) ListEmbeddingProviders(_ context.Context) ([]domain.EmbeddingProviderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable != nil {
		return nil, s.unavailable
	}
	return decodeAll[domain.EmbeddingProviderRecord](s.embedding)
}

// UpsertProvider stores or replaces a generation provider record.
func (s *RegistryStore) UpsertProvider(_ context.Context, rec domain.ProviderRecord) error {
	return s.put(s.providers, rec.Provider, rec)
}

// UpsertEmbeddingProvider stores or replaces an embedding provider record.
func (s *RegistryStore) UpsertEmbeddingProvider(_ context.Context, rec domain.EmbeddingProviderRecord) error {
	return s.put(s.embedding, rec.Provider, rec)
}

// DeleteProvider removes a generation provider record.
func (s *RegistryStore) DeleteProvider(_ context.Context, id string) error {
	return s.remove(s.providers, id)
}

// DeleteEmbeddingProvider removes an embedding provider record.
func (s *RegistryStore) DeleteEmbeddingProvider(_ context.Context, id string) error {
	return s.remove(s.embedding, id)
}

// Close is a no-op for the in-memory store.
func (s *RegistryStore) Close() error {
	return nil
}

func (s *RegistryStore) put(docs map[string][]byte, id string, rec any) error {
	if id == "" {
		return fmt.Errorf("memory registry: %w: missing provider id", domain.ErrConfiguration)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memory registry: encode %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable != nil {
		return s.unavailable
	}
	docs[id] = data
	return nil
}

func (s *RegistryStore) remove(docs map[string][]byte, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable != nil {
		return s.unavailable
	}
	if _, ok := docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(docs, id)
	return nil
}

func decodeAll[T any](docs map[string][]byte) ([]T, error) {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]T, 0, len(ids))
	for _, id := range ids {
		var rec T
		if err := json.Unmarshal(docs[id], &rec); err != nil {
			return nil, fmt.Errorf("memory registry: decode %s: %w", id, err)
		}
		result = append(result, rec)
	}
	return result, nil
}
